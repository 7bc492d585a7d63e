// Package media resolves YouTube videos to an audio stream and downloads it.
package media

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcribe/guard"
	"github.com/nijaru/yt-transcribe/models"
)

// Source fetches the audio of a video.
type Source interface {
	Fetch(ctx context.Context, src models.VideoSource) (*models.AudioPayload, error)
}

// ParseSource validates rawURL as a YouTube video URL. Anything else is an
// UnsupportedSource fetch error.
func ParseSource(rawURL string) (models.VideoSource, error) {
	const op = "media.ParseSource"
	src, err := models.NewVideoSource(rawURL)
	if err != nil {
		return models.VideoSource{}, newFetchError(UnsupportedSource, op, rawURL, err, "not a YouTube video URL")
	}
	return src, nil
}

type Fetcher struct {
	resolver   Resolver
	downloader *Downloader
	maxBytes   int64
	logger     logrus.FieldLogger
}

func NewFetcher(resolver Resolver, downloader *Downloader, logger logrus.FieldLogger) *Fetcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fetcher{
		resolver:   resolver,
		downloader: downloader,
		maxBytes:   guard.MaxPayloadBytes,
		logger:     logger,
	}
}

// WithMaxBytes lowers the upload limit. Formats declaring more are rejected
// before download and the downloader stops reading past it.
func (f *Fetcher) WithMaxBytes(n int64) *Fetcher {
	f.maxBytes = guard.New(n).Limit()
	if f.downloader != nil {
		f.downloader.MaxBytes = f.maxBytes
	}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, src models.VideoSource) (*models.AudioPayload, error) {
	const op = "Fetcher.Fetch"
	logger := f.logger.WithFields(logrus.Fields{
		"url":      src.URL(),
		"video_id": src.ID(),
	})

	info, err := f.resolver.Resolve(ctx, src)
	if err != nil {
		return nil, err
	}
	if info.IsLive {
		return nil, newFetchError(NotFound, op, src.URL(), nil, "live streams cannot be transcribed")
	}
	if len(info.Formats) == 0 {
		return nil, newFetchError(NotFound, op, src.URL(), nil, "video has no playable formats")
	}

	format, ok := SelectAudioFormat(info.Formats)
	if !ok {
		return nil, newFetchError(NoAudioTrack, op, src.URL(), nil, "no suitable audio tracks found")
	}

	declared := format.Size()
	if declared > f.maxBytes {
		logger.WithFields(logrus.Fields{
			"format_id":      format.FormatID,
			"declared_bytes": declared,
		}).Warn("Declared audio size exceeds upload limit")
		return nil, &guard.SizeError{ActualBytes: declared, LimitBytes: f.maxBytes}
	}

	logger.WithFields(logrus.Fields{
		"format_id":      format.FormatID,
		"ext":            format.Ext,
		"declared_bytes": declared,
	}).Info("Downloading audio track")

	start := time.Now()
	data, err := f.downloader.Download(ctx, format.URL)
	if err != nil {
		return nil, err
	}

	payload := models.NewAudioPayload(data, format.MIMEType(), format.Ext)
	payload.Title = info.Title

	logger.WithFields(logrus.Fields{
		"bytes":    payload.SizeBytes,
		"duration": time.Since(start),
	}).Info("Audio track downloaded")
	return payload, nil
}

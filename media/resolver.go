package media

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcribe/models"
)

// Resolver turns a video source into its metadata and downloadable formats.
type Resolver interface {
	Resolve(ctx context.Context, src models.VideoSource) (*VideoInfo, error)
}

type VideoInfo struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Duration float64  `json:"duration"`
	IsLive   bool     `json:"is_live"`
	Formats  []Format `json:"formats"`
}

type Format struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	URL            string   `json:"url"`
	Protocol       string   `json:"protocol"`
	ACodec         string   `json:"acodec"`
	VCodec         string   `json:"vcodec"`
	Filesize       *int64   `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	ABR            float64  `json:"abr"`
}

func (f Format) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

func (f Format) AudioOnly() bool {
	return f.HasAudio() && (f.VCodec == "none" || f.VCodec == "")
}

// Size returns the exact size when known, else the approximation, else -1.
func (f Format) Size() int64 {
	if f.Filesize != nil && *f.Filesize > 0 {
		return *f.Filesize
	}
	if f.FilesizeApprox != nil && *f.FilesizeApprox > 0 {
		return int64(*f.FilesizeApprox)
	}
	return -1
}

func (f Format) direct() bool {
	if f.URL == "" {
		return false
	}
	switch f.Protocol {
	case "", "http", "https":
		return true
	default:
		return false
	}
}

// containers the transcription service accepts, mapped to the MIME type sent
// with the upload
var acceptedContainers = map[string]string{
	"m4a":  "audio/mp4",
	"mp4":  "audio/mp4",
	"webm": "audio/webm",
	"mp3":  "audio/mpeg",
	"mpeg": "audio/mpeg",
	"mpga": "audio/mpeg",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
	"flac": "audio/flac",
}

func (f Format) MIMEType() string {
	if mt, ok := acceptedContainers[f.Ext]; ok {
		return mt
	}
	return "application/octet-stream"
}

// SelectAudioFormat picks the format to download. Audio-only m4a wins, then any
// other audio-only container the service accepts, then muxed formats. Within a
// tier the smallest known size wins.
func SelectAudioFormat(formats []Format) (Format, bool) {
	var candidates []Format
	for _, f := range formats {
		if !f.HasAudio() || !f.direct() {
			continue
		}
		if _, ok := acceptedContainers[f.Ext]; !ok {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return Format{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ti, tj := formatTier(candidates[i]), formatTier(candidates[j])
		if ti != tj {
			return ti < tj
		}
		si, sj := candidates[i].Size(), candidates[j].Size()
		if (si < 0) != (sj < 0) {
			return si >= 0
		}
		return si < sj
	})
	return candidates[0], true
}

func formatTier(f Format) int {
	switch {
	case f.AudioOnly() && f.Ext == "m4a":
		return 0
	case f.AudioOnly():
		return 1
	default:
		return 2
	}
}

var execCommand = exec.CommandContext

// YtDlpResolver shells out to yt-dlp for video metadata.
type YtDlpResolver struct {
	Path   string
	Logger logrus.FieldLogger
}

func NewYtDlpResolver(path string, logger logrus.FieldLogger) *YtDlpResolver {
	if path == "" {
		path = "yt-dlp"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &YtDlpResolver{Path: path, Logger: logger}
}

func (r *YtDlpResolver) Resolve(ctx context.Context, src models.VideoSource) (*VideoInfo, error) {
	const op = "YtDlpResolver.Resolve"
	logger := r.Logger.WithFields(logrus.Fields{
		"video_id": src.ID(),
		"resolver": r.Path,
	})
	logger.Debug("Resolving video metadata")

	cmd := execCommand(ctx, r.Path, "-J", "--no-playlist", "--no-warnings", src.WatchURL())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, newFetchError(NetworkError, op, src.URL(), ctxErr, "metadata resolution cancelled")
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, newFetchError(NetworkError, op, src.URL(), err, r.Path+" is not installed")
		}
		stderrOutput := strings.TrimSpace(stderr.String())
		logger.WithError(err).WithField("stderr", stderrOutput).Warn("Metadata resolution failed")
		kind := classifyResolverOutput(stderrOutput)
		return nil, newFetchError(kind, op, src.URL(), errors.Wrap(err, lastLine(stderrOutput)), "")
	}

	info, err := parseVideoInfo(stdout.Bytes())
	if err != nil {
		return nil, newFetchError(NetworkError, op, src.URL(), err, "unreadable metadata from "+r.Path)
	}
	logger.WithFields(logrus.Fields{
		"title":   info.Title,
		"formats": len(info.Formats),
	}).Debug("Resolved video metadata")
	return info, nil
}

func parseVideoInfo(output []byte) (*VideoInfo, error) {
	var info VideoInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal video info")
	}
	return &info, nil
}

var unavailableMarkers = []string{
	"video unavailable",
	"this video is unavailable",
	"this video is not available",
	"private video",
	"has been removed",
	"incomplete youtube id",
	"does not exist",
	"http error 404",
	"http error 410",
	"members-only",
	"sign in to confirm your age",
}

func classifyResolverOutput(stderr string) FetchKind {
	lower := strings.ToLower(stderr)
	for _, marker := range unavailableMarkers {
		if strings.Contains(lower, marker) {
			return NotFound
		}
	}
	return NetworkError
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	if s == "" {
		return "resolver failed"
	}
	return s
}

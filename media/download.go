package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nijaru/yt-transcribe/guard"
)

const (
	DefaultChunkSize   int64 = 10 * 1024 * 1024
	DefaultConcurrency       = 4
)

// Downloader retrieves a media URL into memory. Bytes are staged in a temp
// file that is removed before Download returns, whatever the outcome.
type Downloader struct {
	Client      *http.Client
	ChunkSize   int64
	Concurrency int
	TempDir     string
	// MaxBytes caps the download; larger media fails with *guard.SizeError.
	// Zero means no cap.
	MaxBytes int64
	Logger   logrus.FieldLogger
}

func NewDownloader(client *http.Client, chunkSize int64, concurrency int, tempDir string, logger logrus.FieldLogger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Downloader{
		Client:      client,
		ChunkSize:   chunkSize,
		Concurrency: concurrency,
		TempDir:     tempDir,
		MaxBytes:    guard.MaxPayloadBytes,
		Logger:      logger,
	}
}

func (d *Downloader) Download(ctx context.Context, mediaURL string) ([]byte, error) {
	const op = "Downloader.Download"

	f, err := os.CreateTemp(d.TempDir, "yt-transcribe-*.audio")
	if err != nil {
		return nil, newFetchError(NetworkError, op, mediaURL, err, "failed to create temp file")
	}
	defer func() {
		f.Close()
		if rmErr := os.Remove(f.Name()); rmErr != nil {
			d.Logger.WithError(rmErr).WithField("filename", f.Name()).Error("Failed to remove temp file")
		}
	}()

	// A one-byte range probe tells us both the total size and whether the
	// host honours ranges.
	resp, err := d.get(ctx, mediaURL, "bytes=0-0")
	if err != nil {
		return nil, d.transportError(ctx, op, mediaURL, err)
	}

	var size int64
	switch resp.StatusCode {
	case http.StatusPartialContent:
		resp.Body.Close()
		total, ok := parseContentRangeTotal(resp.Header.Get("Content-Range"))
		if !ok {
			return nil, newFetchError(NetworkError, op, mediaURL, nil, "media host returned no usable Content-Range")
		}
		if d.MaxBytes > 0 && total > d.MaxBytes {
			return nil, &guard.SizeError{ActualBytes: total, LimitBytes: d.MaxBytes}
		}
		size = total
		if err := d.downloadRanges(ctx, f, mediaURL, total); err != nil {
			return nil, err
		}
	case http.StatusOK:
		if d.MaxBytes > 0 && resp.ContentLength > d.MaxBytes {
			resp.Body.Close()
			return nil, &guard.SizeError{ActualBytes: resp.ContentLength, LimitBytes: d.MaxBytes}
		}
		body := io.Reader(resp.Body)
		if d.MaxBytes > 0 {
			body = io.LimitReader(resp.Body, d.MaxBytes+1)
		}
		n, copyErr := io.Copy(f, body)
		resp.Body.Close()
		if copyErr != nil {
			return nil, d.transportError(ctx, op, mediaURL, copyErr)
		}
		if d.MaxBytes > 0 && n > d.MaxBytes {
			return nil, &guard.SizeError{ActualBytes: n, LimitBytes: d.MaxBytes}
		}
		size = n
	default:
		resp.Body.Close()
		return nil, statusError(op, mediaURL, resp.StatusCode)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, size), data); err != nil {
		return nil, newFetchError(NetworkError, op, mediaURL, err, "failed to read staged audio")
	}

	d.Logger.WithField("bytes", size).Debug("Audio download complete")
	return data, nil
}

func (d *Downloader) downloadRanges(ctx context.Context, f *os.File, mediaURL string, total int64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Concurrency)

	for start := int64(0); start < total; start += d.ChunkSize {
		end := min(start+d.ChunkSize, total) - 1
		g.Go(func() error {
			return d.downloadRange(gctx, f, mediaURL, start, end)
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return newFetchError(NetworkError, "Downloader.downloadRanges", mediaURL, ctx.Err(), "download cancelled")
		}
		return err
	}
	return nil
}

func (d *Downloader) downloadRange(ctx context.Context, f *os.File, mediaURL string, start, end int64) error {
	const op = "Downloader.downloadRange"

	resp, err := d.get(ctx, mediaURL, fmt.Sprintf("bytes=%d-%d", start, end))
	if err != nil {
		return d.transportError(ctx, op, mediaURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return statusError(op, mediaURL, resp.StatusCode)
	}

	want := end - start + 1
	n, err := io.Copy(io.NewOffsetWriter(f, start), io.LimitReader(resp.Body, want))
	if err != nil {
		return d.transportError(ctx, op, mediaURL, err)
	}
	if n != want {
		return newFetchError(NetworkError, op, mediaURL, io.ErrUnexpectedEOF,
			fmt.Sprintf("short read for range %d-%d: got %d of %d bytes", start, end, n, want))
	}

	d.Logger.WithFields(logrus.Fields{
		"start": start,
		"end":   end,
	}).Debug("Downloaded chunk")
	return nil
}

func (d *Downloader) get(ctx context.Context, mediaURL, byteRange string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build media request")
	}
	req.Header.Set("Range", byteRange)
	return d.Client.Do(req)
}

func (d *Downloader) transportError(ctx context.Context, op, mediaURL string, err error) *FetchError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return newFetchError(NetworkError, op, mediaURL, ctxErr, "download cancelled")
	}
	return newFetchError(NetworkError, op, mediaURL, err, "media transfer failed")
}

func statusError(op, mediaURL string, code int) *FetchError {
	kind := NetworkError
	if code == http.StatusNotFound || code == http.StatusGone {
		kind = NotFound
	}
	return newFetchError(kind, op, mediaURL, nil, fmt.Sprintf("media host returned HTTP %d", code))
}

// parseContentRangeTotal reads the complete length from "bytes 0-0/12345".
func parseContentRangeTotal(header string) (int64, bool) {
	i := strings.LastIndexByte(header, '/')
	if i < 0 || !strings.HasPrefix(header, "bytes ") {
		return 0, false
	}
	total, err := strconv.ParseInt(header[i+1:], 10, 64)
	if err != nil || total <= 0 {
		return 0, false
	}
	return total, true
}

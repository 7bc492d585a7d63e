// Package storage persists a finished transcript to a local file or an S3
// compatible bucket.
package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

const s3Scheme = "s3://"

type Writer interface {
	// Prepare checks that Write can succeed without writing anything, so a
	// bad destination is reported before any paid work starts.
	Prepare(ctx context.Context) error
	Write(ctx context.Context, text string) error
	Location() string
}

// IsS3Path reports whether dest names an object as s3://bucket/key.
func IsS3Path(dest string) bool {
	return strings.HasPrefix(dest, s3Scheme)
}

// NewWriter picks a writer for dest. S3 clients are only built when dest is
// an s3:// path.
func NewWriter(ctx context.Context, dest string, s3cfg S3Config) (Writer, error) {
	if IsS3Path(dest) {
		bucket, key, err := ParseS3Path(dest)
		if err != nil {
			return nil, err
		}
		return NewS3Writer(ctx, s3cfg, bucket, key)
	}
	return NewFileWriter(dest)
}

type FileWriter struct {
	path string
}

func NewFileWriter(dest string) (*FileWriter, error) {
	if strings.TrimSpace(dest) == "" {
		return nil, errors.New("output path is empty")
	}
	path, err := homedir.Expand(dest)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to expand output path %q", dest)
	}
	return &FileWriter{path: path}, nil
}

func (w *FileWriter) Location() string {
	return w.path
}

// Prepare creates the parent directory and opens the file for writing. A file
// that did not exist before is removed again.
func (w *FileWriter) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create output directory")
		}
	}
	_, statErr := os.Stat(w.path)
	existed := statErr == nil

	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return errors.Wrapf(err, "cannot write transcript to %s", w.path)
	}
	f.Close()
	if !existed {
		os.Remove(w.path)
	}
	return nil
}

func (w *FileWriter) Write(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create output directory")
		}
	}
	if err := os.WriteFile(w.path, []byte(withTrailingNewline(text)), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write transcript to %s", w.path)
	}
	return nil
}

func withTrailingNewline(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}

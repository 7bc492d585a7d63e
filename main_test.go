package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-transcribe/guard"
	"github.com/nijaru/yt-transcribe/history"
	"github.com/nijaru/yt-transcribe/models"
	"github.com/nijaru/yt-transcribe/pipeline"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, o *options)
	}{
		{
			name: "url only",
			args: []string{"https://youtu.be/dQw4w9WgXcQ"},
			check: func(t *testing.T, o *options) {
				assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", o.url)
				assert.Equal(t, -1, o.retries)
				assert.False(t, o.splitSentences)
			},
		},
		{
			name: "all flags",
			args: []string{"-k", "sk-x", "-o", "~/out.txt", "--split-sentences", "--retries", "2", "--timeout", "30s", "-q", "https://youtu.be/dQw4w9WgXcQ"},
			check: func(t *testing.T, o *options) {
				assert.Equal(t, "sk-x", o.apiKey)
				assert.Equal(t, "~/out.txt", o.output)
				assert.True(t, o.splitSentences)
				assert.Equal(t, 2, o.retries)
				assert.Equal(t, 30*time.Second, o.timeout)
				assert.True(t, o.quiet)
			},
		},
		{
			name:  "version without url",
			args:  []string{"--version"},
			check: func(t *testing.T, o *options) { assert.True(t, o.showVersion) },
		},
		{name: "missing url", args: []string{}, wantErr: true},
		{name: "two urls", args: []string{"a", "b"}, wantErr: true},
		{name: "unknown flag", args: []string{"--nope", "a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseArgs(tt.args, &bytes.Buffer{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func TestRunUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run([]string{}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "a video URL is required")
	assert.Empty(t, stdout.String())
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"--version"}, &stdout, &stderr))
	assert.Equal(t, "yt-transcribe dev\n", stdout.String())
}

func TestRunMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitUsage, run([]string{"https://youtu.be/dQw4w9WgXcQ"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "no API key")
}

func TestRunUnsupportedURL(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-k", "sk-test", "-q", "https://vimeo.com/123"}, &stdout, &stderr)
	assert.Equal(t, pipeline.ExitUnsupportedSource, code)
	assert.Contains(t, stderr.String(), pipeline.ClassVideoUnavailable)
	assert.Empty(t, stdout.String())
}

func TestRunRejectsBadOutputBeforeFetching(t *testing.T) {
	dir := t.TempDir()
	notADir := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o644))
	// yt-dlp would leave a marker if the pipeline started
	marker := filepath.Join(dir, "resolver-ran")
	ytdlp := filepath.Join(dir, "yt-dlp")
	require.NoError(t, os.WriteFile(ytdlp, []byte("#!/bin/sh\ntouch "+marker+"\nexit 1\n"), 0o755))
	t.Setenv("YTDLP_PATH", ytdlp)

	tests := []struct {
		name   string
		output string
	}{
		{"parent is a file", filepath.Join(notADir, "out.txt")},
		{"s3 path without key", "s3://transcripts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run([]string{"-k", "sk-test", "-o", tt.output, "https://youtu.be/dQw4w9WgXcQ"}, &stdout, &stderr)

			assert.Equal(t, exitUsage, code)
			assert.Contains(t, stderr.String(), "invalid output")
			assert.NotContains(t, stderr.String(), "Fetching audio")
			assert.Empty(t, stdout.String())
			_, err := os.Stat(marker)
			assert.True(t, os.IsNotExist(err), "pipeline must not start")
		})
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name        string
		transitions []pipeline.State
		want        string
	}{
		{
			name:        "success",
			transitions: []pipeline.State{pipeline.StateFetching, pipeline.StateSizeChecking, pipeline.StateTranscribing, pipeline.StateDone},
			want:        "Fetching audio... done.\nTranscribing... done.\n",
		},
		{
			name:        "fetch failure",
			transitions: []pipeline.State{pipeline.StateFetching, pipeline.StateFailed},
			want:        "Fetching audio... failed.\n",
		},
		{
			name:        "size failure",
			transitions: []pipeline.State{pipeline.StateFetching, pipeline.StateSizeChecking, pipeline.StateFailed},
			want:        "Fetching audio... done.\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := newProgress(&buf)
			from := pipeline.StateStart
			for _, to := range tt.transitions {
				p.observe(from, to)
				from = to
			}
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

type fixedSource struct {
	payload *models.AudioPayload
	err     error
	ctx     context.Context
}

func (s *fixedSource) Fetch(ctx context.Context, src models.VideoSource) (*models.AudioPayload, error) {
	s.ctx = ctx
	return s.payload, s.err
}

func TestTimedSource(t *testing.T) {
	inner := &fixedSource{payload: models.NewAudioPayload(make([]byte, 42), "audio/mp4", "m4a")}
	src := &timedSource{source: inner, timeout: time.Minute}

	vs, err := models.NewVideoSource("https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)

	payload, err := src.Fetch(context.Background(), vs)
	require.NoError(t, err)
	assert.Equal(t, int64(42), payload.SizeBytes)
	assert.Equal(t, int64(42), src.bytes)

	_, hasDeadline := inner.ctx.Deadline()
	assert.True(t, hasDeadline)
}

func TestRecordHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	failed := &pipeline.Error{
		Stage: pipeline.StageSizeLimit,
		Err:   &guard.SizeError{ActualBytes: guard.MaxPayloadBytes + 1, LimitBytes: guard.MaxPayloadBytes},
	}
	id := uuid.New()
	recordHistory(context.Background(), dbPath, log, history.Run{
		ID:         id,
		URL:        "https://youtu.be/dQw4w9WgXcQ",
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}, failed)

	store, err := history.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, got.Status)
	assert.Equal(t, pipeline.StageSizeLimit.String(), got.Stage)
	assert.Equal(t, pipeline.ClassAudioTooLarge, got.ErrorClass)
	assert.Equal(t, pipeline.ExitTooLarge, got.ExitCode)
}

func TestRecordHistoryDisabled(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	// No path means no journal and no panic on a nil store.
	recordHistory(context.Background(), "", log, history.Run{}, errors.New("boom"))
}

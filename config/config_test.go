package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-transcribe/guard"
	"github.com/nijaru/yt-transcribe/whisper"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"OPENAI_API_KEY", "WHISPER_ENDPOINT", "WHISPER_MODEL", "TRANSCRIBE_TIMEOUT",
		"TRANSCRIBE_MAX_RETRIES", "MAX_PAYLOAD_BYTES", "LOG_LEVEL", "HISTORY_DB_PATH",
	} {
		os.Unsetenv(key)
	}

	cfg := LoadConfig()
	assert.Equal(t, whisper.DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, whisper.DefaultModel, cfg.ModelName)
	assert.Equal(t, 10*time.Minute, cfg.TranscribeTimeout)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, guard.MaxPayloadBytes, cfg.MaxPayloadBytes)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Empty(t, cfg.HistoryDBPath)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TRANSCRIBE_TIMEOUT", "90s")
	t.Setenv("TRANSCRIBE_MAX_RETRIES", "3")
	t.Setenv("RATE_LIMIT_RPM", "10")
	t.Setenv("DOWNLOAD_CHUNK_SIZE", "1048576")

	cfg := LoadConfig()
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, 90*time.Second, cfg.TranscribeTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, int64(1048576), cfg.DownloadChunkSize)

	wc := cfg.WhisperConfig()
	assert.Equal(t, 90*time.Second, wc.Timeout)
	assert.Equal(t, 10, wc.RequestsPerMinute)
	assert.Equal(t, 3, wc.MaxRetries)
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("TRANSCRIBE_TIMEOUT", "soon")
	t.Setenv("DOWNLOAD_CONCURRENCY", "many")
	t.Setenv("MAX_PAYLOAD_BYTES", "big")

	cfg := LoadConfig()
	assert.Equal(t, 10*time.Minute, cfg.TranscribeTimeout)
	assert.Equal(t, 4, cfg.DownloadConcurrency)
	assert.Equal(t, guard.MaxPayloadBytes, cfg.MaxPayloadBytes)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"json format", func(c *Config) { c.ResponseFormat = whisper.FormatJSON }, true},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, false},
		{"non http endpoint", func(c *Config) { c.Endpoint = "ftp://example.com" }, false},
		{"unknown format", func(c *Config) { c.ResponseFormat = "srt" }, false},
		{"zero timeout", func(c *Config) { c.TranscribeTimeout = 0 }, false},
		{"zero fetch timeout", func(c *Config) { c.FetchTimeout = 0 }, false},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, false},
		{"negative rate", func(c *Config) { c.RateLimitRPM = -1 }, false},
		{"payload above service limit", func(c *Config) { c.MaxPayloadBytes = guard.MaxPayloadBytes + 1 }, false},
		{"payload zero", func(c *Config) { c.MaxPayloadBytes = 0 }, false},
		{"smaller payload", func(c *Config) { c.MaxPayloadBytes = 1024 }, true},
		{"zero chunk", func(c *Config) { c.DownloadChunkSize = 0 }, false},
		{"zero concurrency", func(c *Config) { c.DownloadConcurrency = 0 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Endpoint:            whisper.DefaultEndpoint,
				ResponseFormat:      whisper.FormatText,
				TranscribeTimeout:   time.Minute,
				FetchTimeout:        time.Minute,
				MaxPayloadBytes:     guard.MaxPayloadBytes,
				DownloadChunkSize:   1024,
				DownloadConcurrency: 2,
				LogLevel:            "info",
			}
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("YT_TRANSCRIBE_TEST_KEY=from-file\nWHISPER_MODEL=ignored\n"), 0o600))
	t.Setenv("WHISPER_MODEL", "from-env")
	t.Cleanup(func() { os.Unsetenv("YT_TRANSCRIBE_TEST_KEY") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("YT_TRANSCRIBE_TEST_KEY"))
	assert.Equal(t, "from-env", os.Getenv("WHISPER_MODEL"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

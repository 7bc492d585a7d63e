package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcribe/guard"
	"github.com/nijaru/yt-transcribe/whisper"
)

type Config struct {
	APIKey string

	// Transcription service
	Endpoint          string
	ModelName         string
	ResponseFormat    string
	TranscribeTimeout time.Duration
	MaxRetries        int
	RateLimitRPM      int
	MaxPayloadBytes   int64

	// Media fetching
	YtDlpPath           string
	FetchTimeout        time.Duration
	TempDir             string
	DownloadChunkSize   int64
	DownloadConcurrency int

	// Logging
	LogDir    string
	LogLevel  string
	LogFormat string

	// Run history, disabled when empty
	HistoryDBPath string

	S3 S3Config
}

type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// LoadDotEnv loads variables from the given files (".env" when none) without
// overriding the real environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}

func LoadConfig() *Config {
	return &Config{
		APIKey: GetEnv("OPENAI_API_KEY", ""),

		Endpoint:          GetEnv("WHISPER_ENDPOINT", whisper.DefaultEndpoint),
		ModelName:         GetEnv("WHISPER_MODEL", whisper.DefaultModel),
		ResponseFormat:    GetEnv("WHISPER_RESPONSE_FORMAT", whisper.FormatText),
		TranscribeTimeout: getEnvAsDuration("TRANSCRIBE_TIMEOUT", 10*time.Minute),
		MaxRetries:        getEnvAsInt("TRANSCRIBE_MAX_RETRIES", 0),
		RateLimitRPM:      getEnvAsInt("RATE_LIMIT_RPM", 50),
		MaxPayloadBytes:   getEnvAsInt64("MAX_PAYLOAD_BYTES", guard.MaxPayloadBytes),

		YtDlpPath:           GetEnv("YTDLP_PATH", "yt-dlp"),
		FetchTimeout:        getEnvAsDuration("FETCH_TIMEOUT", 10*time.Minute),
		TempDir:             GetEnv("TEMP_DIR", os.TempDir()),
		DownloadChunkSize:   getEnvAsInt64("DOWNLOAD_CHUNK_SIZE", 10*1024*1024),
		DownloadConcurrency: getEnvAsInt("DOWNLOAD_CONCURRENCY", 4),

		LogDir:    GetEnv("LOG_DIR", ""),
		LogLevel:  GetEnv("LOG_LEVEL", "warn"),
		LogFormat: GetEnv("LOG_FORMAT", "text"),

		HistoryDBPath: GetEnv("HISTORY_DB_PATH", ""),

		S3: S3Config{
			Region:    GetEnv("S3_REGION", "us-east-1"),
			Endpoint:  GetEnv("S3_ENDPOINT", ""),
			AccessKey: GetEnv("S3_ACCESS_KEY", ""),
			SecretKey: GetEnv("S3_SECRET_KEY", ""),
		},
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func ValidateConfig(cfg *Config) error {
	if cfg.Endpoint == "" {
		return errors.New("transcription endpoint is required")
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return errors.Errorf("transcription endpoint must be an http(s) URL, got %q", cfg.Endpoint)
	}
	if cfg.ResponseFormat != whisper.FormatText && cfg.ResponseFormat != whisper.FormatJSON {
		return errors.Errorf("unsupported response format %q", cfg.ResponseFormat)
	}
	if cfg.TranscribeTimeout <= 0 {
		return errors.New("transcribe timeout must be greater than 0")
	}
	if cfg.FetchTimeout <= 0 {
		return errors.New("fetch timeout must be greater than 0")
	}
	if cfg.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if cfg.RateLimitRPM < 0 {
		return errors.New("rate limit cannot be negative")
	}
	if cfg.MaxPayloadBytes <= 0 || cfg.MaxPayloadBytes > guard.MaxPayloadBytes {
		return errors.Errorf("max payload bytes must be between 1 and %d", guard.MaxPayloadBytes)
	}
	if cfg.DownloadChunkSize <= 0 {
		return errors.New("download chunk size must be greater than 0")
	}
	if cfg.DownloadConcurrency <= 0 {
		return errors.New("download concurrency must be greater than 0")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	return nil
}

func (c *Config) WhisperConfig() whisper.Config {
	return whisper.Config{
		Endpoint:          c.Endpoint,
		Model:             c.ModelName,
		ResponseFormat:    c.ResponseFormat,
		Timeout:           c.TranscribeTimeout,
		RequestsPerMinute: c.RateLimitRPM,
		MaxRetries:        c.MaxRetries,
	}
}

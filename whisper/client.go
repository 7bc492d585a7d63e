// Package whisper talks to a Whisper-compatible speech-to-text HTTP API.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nijaru/yt-transcribe/models"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"
	DefaultModel    = "whisper-1"
	DefaultLanguage = "en"

	FormatText = "text"
	FormatJSON = "json"

	// responses larger than this are not transcripts
	maxResponseBytes = 16 * 1024 * 1024
)

// Transcriber converts a checked audio payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req models.TranscriptionRequest) (models.Transcript, error)
}

type Config struct {
	Endpoint          string
	Model             string
	Language          string
	ResponseFormat    string
	Temperature       float64
	Timeout           time.Duration
	RequestsPerMinute int

	// Retries are off unless MaxRetries > 0. Only RateLimited and
	// ServiceUnavailable failures are retried.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.ResponseFormat == "" {
		c.ResponseFormat = FormatText
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = initialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = maxBackoff
	}
	return c
}

type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logrus.FieldLogger
}

// NewClient builds a client. A nil httpClient gets one bounded by cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client, logger logrus.FieldLogger) *Client {
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}
}

func (c *Client) Transcribe(ctx context.Context, req models.TranscriptionRequest) (models.Transcript, error) {
	const op = "Client.Transcribe"

	if req.Payload == nil {
		return models.Transcript{}, errors.New("whisper: transcription request without payload")
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return models.Transcript{}, newTranscriptionError(Unauthorized, op, 0, nil, "missing API key")
	}

	body, contentType, err := c.encode(req.Payload)
	if err != nil {
		return models.Transcript{}, errors.Wrap(err, "failed to encode transcription request")
	}

	text, err := withRetry(ctx, c.config, c.logger, func(attempt int) (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", newTranscriptionError(ServiceUnavailable, op, 0, err, "request not sent")
		}
		return c.send(ctx, req.APIKey, body, contentType, attempt)
	})
	if err != nil {
		return models.Transcript{}, err
	}
	return models.Transcript{Text: text}, nil
}

func (c *Client) encode(p *models.AudioPayload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, p.Filename()))
	header.Set("Content-Type", p.MIMEType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(p.Data); err != nil {
		return nil, "", err
	}

	fields := []struct{ name, value string }{
		{"model", c.config.Model},
		{"language", c.config.Language},
		{"response_format", c.config.ResponseFormat},
		{"temperature", strconv.FormatFloat(c.config.Temperature, 'f', -1, 64)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) send(ctx context.Context, apiKey string, body []byte, contentType string, attempt int) (string, error) {
	const op = "Client.send"
	logger := c.logger.WithFields(logrus.Fields{
		"endpoint": c.config.Endpoint,
		"model":    c.config.Model,
		"bytes":    len(body),
		"attempt":  attempt,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to build transcription request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", contentType)

	logger.Debug("Sending transcription request")
	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		logger.WithError(err).Warn("Transcription request failed")
		return "", newTranscriptionError(ServiceUnavailable, op, 0, err, "transport failure")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", newTranscriptionError(ServiceUnavailable, op, resp.StatusCode, err, "failed to read response")
	}
	oversized := len(respBody) > maxResponseBytes
	if oversized {
		respBody = respBody[:maxResponseBytes]
	}

	logger.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"latency": time.Since(start),
	}).Debug("Transcription response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := newTranscriptionError(kindForStatus(resp.StatusCode), op, resp.StatusCode, nil, serviceMessage(respBody))
		terr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", terr
	}

	if oversized {
		return "", newTranscriptionError(InvalidResponse, op, resp.StatusCode, nil,
			fmt.Sprintf("response body exceeds %d bytes", maxResponseBytes))
	}
	return parseTranscript(op, resp.Header.Get("Content-Type"), respBody)
}

func parseTranscript(op, contentType string, body []byte) (string, error) {
	var text string
	if strings.Contains(contentType, "application/json") {
		var payload struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return "", newTranscriptionError(InvalidResponse, op, 0, err, "malformed JSON body")
		}
		if payload.Text == nil {
			return "", newTranscriptionError(InvalidResponse, op, 0, nil, `response has no "text" field`)
		}
		text = *payload.Text
	} else {
		if !utf8.Valid(body) {
			return "", newTranscriptionError(InvalidResponse, op, 0, nil, "response is not valid UTF-8")
		}
		text = string(body)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", newTranscriptionError(InvalidResponse, op, 0, nil, "empty transcription text")
	}
	return text, nil
}

// serviceMessage extracts {"error":{"message":...}} from an error body, falling
// back to the first line of the raw body.
func serviceMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return truncate(msg, 200)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

package whisper

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
)

// withRetry runs fn once, plus up to cfg.MaxRetries more times for retryable
// transcription errors. The wait grows exponentially with jitter; a larger
// Retry-After from the service is honoured up to cfg.MaxBackoff.
func withRetry(ctx context.Context, cfg Config, logger logrus.FieldLogger, fn func(attempt int) (string, error)) (string, error) {
	for attempt := 1; ; attempt++ {
		text, err := fn(attempt)
		if err == nil {
			return text, nil
		}

		var terr *TranscriptionError
		if !errors.As(err, &terr) || !terr.Kind.Retryable() || attempt > cfg.MaxRetries || ctx.Err() != nil {
			return "", err
		}

		wait := backoff(cfg, attempt, terr.RetryAfter)
		logger.WithFields(logrus.Fields{
			"attempt":          attempt,
			"max_retries":      cfg.MaxRetries,
			"error":            err,
			"backoff_duration": wait,
		}).Warn("Transcription attempt failed, retrying")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			logger.WithError(ctx.Err()).Error("Context cancelled during retry backoff")
			return "", err
		}
	}
}

func backoff(cfg Config, attempt int, retryAfter time.Duration) time.Duration {
	wait := time.Duration(float64(cfg.InitialBackoff) * math.Pow(backoffFactor, float64(attempt-1)))
	if wait > cfg.MaxBackoff {
		wait = cfg.MaxBackoff
	}
	// Add jitter to prevent thundering herd
	if half := int64(wait / 2); half > 0 {
		wait += time.Duration(rand.Int63n(half))
	}
	if retryAfter > wait {
		wait = min(retryAfter, cfg.MaxBackoff)
	}
	return wait
}

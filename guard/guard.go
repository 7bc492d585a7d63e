// Package guard rejects audio payloads that the transcription service would
// refuse, before anything is uploaded.
package guard

import (
	"errors"
	"fmt"

	"github.com/nijaru/yt-transcribe/models"
)

// MaxPayloadBytes is the transcription service's per-request upload ceiling (25 MB).
const MaxPayloadBytes int64 = 25 * 1024 * 1024

// ErrTooLarge matches any *SizeError via errors.Is.
var ErrTooLarge = errors.New("audio payload too large")

var errNilPayload = errors.New("guard: nil audio payload")

type SizeError struct {
	ActualBytes int64
	LimitBytes  int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("audio is too large to transcribe: %d bytes (%.2f MB), limit %d bytes (%.0f MB)",
		e.ActualBytes, megabytes(e.ActualBytes), e.LimitBytes, megabytes(e.LimitBytes))
}

func (e *SizeError) Is(target error) bool {
	return target == ErrTooLarge
}

func megabytes(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

type Guard struct {
	limit int64
}

// New returns a guard enforcing limit. Limits outside (0, MaxPayloadBytes] fall
// back to MaxPayloadBytes.
func New(limit int64) *Guard {
	if limit <= 0 || limit > MaxPayloadBytes {
		limit = MaxPayloadBytes
	}
	return &Guard{limit: limit}
}

func (g *Guard) Limit() int64 { return g.limit }

// Check fails with *SizeError when the payload exceeds the limit. It does no I/O.
func (g *Guard) Check(p *models.AudioPayload) error {
	if p == nil {
		return errNilPayload
	}
	if p.SizeBytes > g.limit {
		return &SizeError{ActualBytes: p.SizeBytes, LimitBytes: g.limit}
	}
	return nil
}

// Check applies the service ceiling.
func Check(p *models.AudioPayload) error {
	return New(MaxPayloadBytes).Check(p)
}

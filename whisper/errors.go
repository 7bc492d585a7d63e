package whisper

import (
	"fmt"
	"time"
)

type ErrorKind int

const (
	Unauthorized ErrorKind = iota + 1
	PayloadRejected
	RateLimited
	ServiceUnavailable
	InvalidResponse
)

func (k ErrorKind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case PayloadRejected:
		return "payload rejected"
	case RateLimited:
		return "rate limited"
	case ServiceUnavailable:
		return "service unavailable"
	case InvalidResponse:
		return "invalid response"
	default:
		return "unknown"
	}
}

// Retryable reports whether waiting and trying again can succeed.
func (k ErrorKind) Retryable() bool {
	return k == RateLimited || k == ServiceUnavailable
}

type TranscriptionError struct {
	Kind       ErrorKind
	StatusCode int // 0 when no HTTP response was received
	Op         string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *TranscriptionError) Error() string {
	msg := e.Kind.String()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = msg + ": " + e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

func newTranscriptionError(kind ErrorKind, op string, status int, err error, message string) *TranscriptionError {
	return &TranscriptionError{
		Kind:       kind,
		StatusCode: status,
		Op:         op,
		Message:    message,
		Err:        err,
	}
}

// kindForStatus maps a non-2xx status code onto the error taxonomy.
func kindForStatus(code int) ErrorKind {
	switch {
	case code == 401 || code == 403:
		return Unauthorized
	case code == 413:
		return PayloadRejected
	case code == 429:
		return RateLimited
	case code >= 500:
		return ServiceUnavailable
	default:
		return InvalidResponse
	}
}

package pipeline

import (
	"errors"
	"fmt"

	"github.com/nijaru/yt-transcribe/guard"
	"github.com/nijaru/yt-transcribe/media"
	"github.com/nijaru/yt-transcribe/whisper"
)

type Stage int

const (
	StageFetch Stage = iota + 1
	StageSizeLimit
	StageTranscription
)

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageSizeLimit:
		return "size limit"
	case StageTranscription:
		return "transcription"
	default:
		return "unknown"
	}
}

// Error records which stage of a run failed.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message classes shown to the operator.
const (
	ClassVideoUnavailable = "video unavailable"
	ClassAudioTooLarge    = "audio too large"
	ClassServiceError     = "transcription service error"
	ClassInternal         = "internal error"
)

// Exit codes, one per failure variant.
const (
	ExitOK                 = 0
	ExitInternal           = 1
	ExitUnsupportedSource  = 10
	ExitNotFound           = 11
	ExitNoAudioTrack       = 12
	ExitFetchNetwork       = 13
	ExitTooLarge           = 20
	ExitUnauthorized       = 30
	ExitPayloadRejected    = 31
	ExitRateLimited        = 32
	ExitServiceUnavailable = 33
	ExitInvalidResponse    = 34
)

// Report is the operator-facing summary of a failed run.
type Report struct {
	Class     string
	ExitCode  int
	Hint      string
	Retryable bool
	Err       error
}

func (r Report) String() string {
	if r.Hint == "" {
		return fmt.Sprintf("%s: %v", r.Class, r.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", r.Class, r.Err, r.Hint)
}

// Describe classifies err. A nil error yields a zero Report with ExitOK.
func Describe(err error) Report {
	if err == nil {
		return Report{ExitCode: ExitOK}
	}

	var fetchErr *media.FetchError
	var sizeErr *guard.SizeError
	var transErr *whisper.TranscriptionError

	switch {
	case errors.As(err, &sizeErr):
		return Report{
			Class:    ClassAudioTooLarge,
			ExitCode: ExitTooLarge,
			Hint:     "pick a shorter video",
			Err:      err,
		}
	case errors.As(err, &fetchErr):
		r := Report{Class: ClassVideoUnavailable, Err: err}
		switch fetchErr.Kind {
		case media.UnsupportedSource:
			r.ExitCode, r.Hint = ExitUnsupportedSource, "only YouTube video URLs are supported"
		case media.NotFound:
			r.ExitCode, r.Hint = ExitNotFound, "check that the video exists and is public"
		case media.NoAudioTrack:
			r.ExitCode, r.Hint = ExitNoAudioTrack, "the video has no downloadable audio"
		case media.NetworkError:
			r.ExitCode, r.Hint, r.Retryable = ExitFetchNetwork, "retry later", true
		default:
			r.ExitCode = ExitInternal
		}
		return r
	case errors.As(err, &transErr):
		r := Report{Class: ClassServiceError, Err: err, Retryable: transErr.Kind.Retryable()}
		switch transErr.Kind {
		case whisper.Unauthorized:
			r.ExitCode, r.Hint = ExitUnauthorized, "check the API key"
		case whisper.PayloadRejected:
			r.ExitCode, r.Hint = ExitPayloadRejected, "the service refused the upload size, pick a shorter video"
		case whisper.RateLimited:
			r.ExitCode, r.Hint = ExitRateLimited, "retry later"
		case whisper.ServiceUnavailable:
			r.ExitCode, r.Hint = ExitServiceUnavailable, "retry later"
		case whisper.InvalidResponse:
			r.ExitCode = ExitInvalidResponse
		default:
			r.ExitCode = ExitInternal
		}
		return r
	default:
		return Report{Class: ClassInternal, ExitCode: ExitInternal, Err: err}
	}
}

func ExitCode(err error) int {
	return Describe(err).ExitCode
}

package media

import "fmt"

type FetchKind int

const (
	NotFound FetchKind = iota + 1
	NoAudioTrack
	NetworkError
	UnsupportedSource
)

func (k FetchKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case NoAudioTrack:
		return "no audio track"
	case NetworkError:
		return "network error"
	case UnsupportedSource:
		return "unsupported source"
	default:
		return "unknown"
	}
}

type FetchError struct {
	Kind    FetchKind
	Op      string
	URL     string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg = e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func newFetchError(kind FetchKind, op, url string, err error, message string) *FetchError {
	return &FetchError{
		Kind:    kind,
		Op:      op,
		URL:     url,
		Message: message,
		Err:     err,
	}
}

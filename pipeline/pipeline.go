// Package pipeline runs one URL through fetch, size check and transcription.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcribe/guard"
	"github.com/nijaru/yt-transcribe/media"
	"github.com/nijaru/yt-transcribe/models"
	"github.com/nijaru/yt-transcribe/whisper"
)

type State int

const (
	StateStart State = iota
	StateFetching
	StateSizeChecking
	StateTranscribing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateFetching:
		return "fetching"
	case StateSizeChecking:
		return "size_checking"
	case StateTranscribing:
		return "transcribing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Observer is told about every state transition of a run.
type Observer func(from, to State)

// SizeChecker is the pre-flight payload check; *guard.Guard implements it.
type SizeChecker interface {
	Check(p *models.AudioPayload) error
}

type Pipeline struct {
	source      media.Source
	guard       SizeChecker
	transcriber whisper.Transcriber
	logger      logrus.FieldLogger
	observers   []Observer
}

func New(source media.Source, checker SizeChecker, transcriber whisper.Transcriber, logger logrus.FieldLogger) *Pipeline {
	if checker == nil {
		checker = guard.New(guard.MaxPayloadBytes)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		source:      source,
		guard:       checker,
		transcriber: transcriber,
		logger:      logger,
	}
}

// OnTransition registers an observer. Not safe to call concurrently with Run.
func (p *Pipeline) OnTransition(o Observer) {
	p.observers = append(p.observers, o)
}

// run holds the state of a single invocation.
type run struct {
	p     *Pipeline
	state State
}

func (r *run) enter(to State) {
	from := r.state
	r.state = to
	for _, o := range r.p.observers {
		o(from, to)
	}
}

func (r *run) fail(stage Stage, err error) error {
	r.enter(StateFailed)
	return &Error{Stage: stage, Err: err}
}

// Run fetches the audio behind url, checks its size and transcribes it with
// apiKey. The transcriber is never called for a payload the guard rejected.
func (p *Pipeline) Run(ctx context.Context, url, apiKey string) (models.Transcript, error) {
	r := &run{p: p, state: StateStart}
	logger := p.logger.WithField("url", url)
	start := time.Now()

	r.enter(StateFetching)
	src, err := media.ParseSource(url)
	if err != nil {
		logger.WithError(err).Warn("Rejected video URL")
		return models.Transcript{}, r.fail(StageFetch, err)
	}
	payload, err := p.source.Fetch(ctx, src)
	if errors.Is(err, guard.ErrTooLarge) {
		// rejected from the declared size or the download cap
		r.enter(StateSizeChecking)
		logger.WithError(err).Warn("Audio exceeds upload limit")
		return models.Transcript{}, r.fail(StageSizeLimit, err)
	}
	if err != nil {
		logger.WithError(err).Error("Failed to fetch audio")
		return models.Transcript{}, r.fail(StageFetch, err)
	}

	r.enter(StateSizeChecking)
	if err := p.guard.Check(payload); err != nil {
		logger.WithError(err).WithField("bytes", payload.SizeBytes).Warn("Audio exceeds upload limit")
		return models.Transcript{}, r.fail(StageSizeLimit, err)
	}

	r.enter(StateTranscribing)
	req := models.TranscriptionRequest{Payload: payload, APIKey: apiKey}
	transcript, err := p.transcriber.Transcribe(ctx, req)
	if err != nil {
		logger.WithError(err).Error("Transcription failed")
		return models.Transcript{}, r.fail(StageTranscription, err)
	}

	r.enter(StateDone)
	logger.WithFields(logrus.Fields{
		"bytes":    payload.SizeBytes,
		"chars":    len(transcript.Text),
		"duration": time.Since(start),
	}).Info("Transcription complete")
	return transcript, nil
}

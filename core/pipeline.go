// Package pipeline turns a stream of raw audio into transcripts, agent replies
// and synthesized speech, one session per connection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/jarvis-voice/core/audio"
)

var (
	ErrMissingTranscriber = errors.New("missing transcriber")
	ErrMissingAgent       = errors.New("missing agent")
	ErrMissingSynthesizer = errors.New("missing synthesizer")
)

type Transcriber interface {
	Transcribe(ctx context.Context, segment audio.Segment) (string, error)
}

// Agent runs one conversation turn and yields only its text increments.
type Agent interface {
	StreamTurn(ctx context.Context, sessionID, userText string) iter.Seq2[string, error]
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) iter.Seq2[[]byte, error]
}

// SessionEnder is implemented by agents that keep per-session state.
type SessionEnder interface {
	EndSession(sessionID string)
}

// Warmer is implemented by collaborators that need to be prepared before
// the first session starts.
type Warmer interface {
	Warm(ctx context.Context) error
}

type Pipeline struct {
	transcriber Transcriber
	agent       Agent
	synthesizer Synthesizer

	encoding      audio.EncodingInfo
	segmentWindow time.Duration
	partialWindow time.Duration
	callTimeout   time.Duration
	surfaceErrors bool

	metrics pipelineMetrics
}

func New(opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		encoding:      audio.GetDefaultEncodingInfo(),
		segmentWindow: audio.DefaultSegmentWindow,
	}
	for _, opt := range opts {
		opt(p)
	}

	var errs []error
	if p.transcriber == nil {
		errs = append(errs, ErrMissingTranscriber)
	}
	if p.agent == nil {
		errs = append(errs, ErrMissingAgent)
	}
	if p.synthesizer == nil {
		errs = append(errs, ErrMissingSynthesizer)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if p.segmentThreshold() <= 0 {
		return nil, fmt.Errorf("segment window %s is too short for %+v", p.segmentWindow, p.encoding)
	}

	p.metrics = newPipelineMetrics()
	return p, nil
}

// Warm prepares every collaborator that supports it. It is meant to run once
// before the first connection is accepted.
func (p *Pipeline) Warm(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "warm pipeline")
	defer span.End()

	var errs []error
	for _, collaborator := range []any{p.transcriber, p.agent, p.synthesizer} {
		if warmer, ok := collaborator.(Warmer); ok {
			if err := warmer.Warm(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to warm pipeline: %w", err)
	}
	return nil
}

func (p *Pipeline) NewSession() *Session {
	return &Session{id: uuid.NewString(), pipeline: p}
}

// EncodingInfo is the format inbound audio is expected in.
func (p *Pipeline) EncodingInfo() audio.EncodingInfo {
	return p.encoding
}

func (p *Pipeline) segmentThreshold() int {
	return p.encoding.BytesFor(p.segmentWindow)
}

func (p *Pipeline) partialThreshold() int {
	if p.partialWindow <= 0 || p.partialWindow >= p.segmentWindow {
		return 0
	}
	return p.encoding.BytesFor(p.partialWindow)
}

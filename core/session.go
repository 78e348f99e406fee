package pipeline

import (
	"context"
	"iter"
	"sync"

	"github.com/koscakluka/jarvis-voice/core/events"
)

// Session binds one connection to one agent thread.
type Session struct {
	id       string
	pipeline *Pipeline

	closeOnce sync.Once
}

func (s *Session) ID() string {
	return s.id
}

// Run composes the stages over source. Nothing happens until the result is
// ranged over, and breaking out of the range stops every stage.
func (s *Session) Run(ctx context.Context, source iter.Seq[[]byte]) iter.Seq[events.Event] {
	p := s.pipeline
	return p.synthesize(ctx,
		p.converse(ctx, s.id,
			p.segment(ctx, source)))
}

// Close ends the agent thread. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if ender, ok := s.pipeline.agent.(SessionEnder); ok {
			ender.EndSession(s.id)
		}
	})
}

package pipeline

import (
	"context"

	"github.com/koscakluka/jarvis-voice/core/events"
)

// callContext applies the per-call timeout, if any.
func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.callTimeout)
}

// surface yields a PipelineError when errors are surfaced and reports whether
// the consumer still wants events.
func (p *Pipeline) surface(yield func(events.Event) bool, stage events.Stage, err error) bool {
	if !p.surfaceErrors {
		return true
	}
	return yield(events.NewPipelineError(stage, err.Error()))
}

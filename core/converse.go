package pipeline

import (
	"context"
	"iter"
	"log"

	"github.com/koscakluka/jarvis-voice/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// converse passes every event on and runs one agent turn per final
// transcript. A turn is fully drained before the next event is pulled.
func (p *Pipeline) converse(ctx context.Context, sessionID string, in iter.Seq[events.Event]) iter.Seq[events.Event] {
	return func(yield func(events.Event) bool) {
		for event := range in {
			if !yield(event) {
				return
			}

			final, ok := event.(events.TranscriptFinal)
			if !ok || final.Text == "" {
				continue
			}
			if !p.runTurn(ctx, sessionID, final.Text, yield) {
				return
			}
		}
	}
}

func (p *Pipeline) runTurn(ctx context.Context, sessionID, userText string, yield func(events.Event) bool) bool {
	ctx, span := tracer.Start(ctx, "run agent turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("turn.prompt_length", len(userText)),
	)
	p.metrics.turns.Add(ctx, 1)

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	deltas := 0
	for text, err := range p.agent.StreamTurn(ctx, sessionID, userText) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "agent turn failed")
			p.metrics.turnFailures.Add(ctx, 1)
			log.Printf("Failed to complete agent turn: %v", err)
			return p.surface(yield, events.StageAgent, err)
		}
		if text == "" {
			continue
		}
		deltas++
		if !yield(events.NewAgentTextDelta(text)) {
			return false
		}
	}
	span.SetAttributes(attribute.Int("turn.deltas", deltas))
	return true
}

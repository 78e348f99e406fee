package pipeline

import (
	"context"
	"fmt"
	"iter"
	"log"
	"strings"

	"github.com/koscakluka/jarvis-voice/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const sentenceBoundaries = ".!?\n"

// synthesize passes every event on, gathers agent text and speaks it whenever
// the gathered text holds a sentence boundary. Leftover text is spoken once
// the input ends.
func (p *Pipeline) synthesize(ctx context.Context, in iter.Seq[events.Event]) iter.Seq[events.Event] {
	return func(yield func(events.Event) bool) {
		var buffer strings.Builder
		for event := range in {
			if !yield(event) {
				return
			}

			delta, ok := event.(events.AgentTextDelta)
			if !ok {
				continue
			}
			buffer.WriteString(delta.Text)
			if !strings.ContainsAny(buffer.String(), sentenceBoundaries) {
				continue
			}

			text := buffer.String()
			buffer.Reset()
			if strings.TrimSpace(text) == "" {
				continue
			}
			if !p.speak(ctx, text, yield) {
				return
			}
		}

		if text := buffer.String(); strings.TrimSpace(text) != "" && ctx.Err() == nil {
			p.speak(ctx, text, yield)
		}
	}
}

func (p *Pipeline) speak(ctx context.Context, text string, yield func(events.Event) bool) bool {
	ctx, span := tracer.Start(ctx, "synthesize text")
	defer span.End()
	span.SetAttributes(attribute.Int("synthesis.text_length", len(text)))
	p.metrics.synthesisCalls.Add(ctx, 1)

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	total := 0
	for chunk, err := range p.synthesizer.Synthesize(ctx, text) {
		if err != nil {
			err = fmt.Errorf("synthesis failed: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "synthesis failed")
			p.metrics.synthesisFailures.Add(ctx, 1)
			log.Printf("Failed to synthesize speech: %v", err)
			return p.surface(yield, events.StageSynthesis, err)
		}
		if len(chunk) == 0 {
			continue
		}
		total += len(chunk)
		if !yield(events.NewSynthesizedAudio(chunk)) {
			return false
		}
	}
	span.SetAttributes(attribute.Int("synthesis.audio_bytes", total))
	return true
}

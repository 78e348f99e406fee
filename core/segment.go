package pipeline

import (
	"context"
	"fmt"
	"iter"
	"log"
	"strings"

	"github.com/koscakluka/jarvis-voice/core/audio"
	"github.com/koscakluka/jarvis-voice/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// segment gathers inbound audio into fixed windows and emits a final
// transcript for every window that contains speech. Whatever is left when
// source ends is transcribed once.
func (p *Pipeline) segment(ctx context.Context, source iter.Seq[[]byte]) iter.Seq[events.Event] {
	return func(yield func(events.Event) bool) {
		threshold := p.segmentThreshold()
		partialStep := p.partialThreshold()
		nextPartial := partialStep

		var buffer []byte
		for chunk := range source {
			if ctx.Err() != nil {
				return
			}
			buffer = append(buffer, chunk...)

			if len(buffer) >= threshold {
				segment := audio.Segment{Audio: buffer, Encoding: p.encoding}
				buffer = nil
				nextPartial = partialStep
				if !p.dispatchSegment(ctx, segment, yield) {
					return
				}
				continue
			}

			if partialStep > 0 && len(buffer) >= nextPartial {
				for nextPartial <= len(buffer) {
					nextPartial += partialStep
				}
				segment := audio.Segment{Audio: append([]byte(nil), buffer...), Encoding: p.encoding}
				if !p.dispatchPartial(ctx, segment, yield) {
					return
				}
			}
		}

		if len(buffer) > 0 && ctx.Err() == nil {
			p.dispatchSegment(ctx, audio.Segment{Audio: buffer, Encoding: p.encoding}, yield)
		}
	}
}

func (p *Pipeline) dispatchSegment(ctx context.Context, segment audio.Segment, yield func(events.Event) bool) bool {
	p.metrics.segments.Add(ctx, 1)
	text, err := p.transcribe(ctx, segment, "transcribe segment")
	if err != nil {
		p.metrics.transcriptionFailures.Add(ctx, 1)
		log.Printf("Failed to transcribe segment: %v", err)
		return p.surface(yield, events.StageTranscription, err)
	}
	if text == "" {
		return true
	}
	return yield(events.NewTranscriptFinal(text))
}

func (p *Pipeline) dispatchPartial(ctx context.Context, segment audio.Segment, yield func(events.Event) bool) bool {
	text, err := p.transcribe(ctx, segment, "transcribe partial segment")
	if err != nil {
		logger.DebugContext(ctx, "failed to transcribe partial segment", "error", err)
		return true
	}
	if text == "" {
		return true
	}
	return yield(events.NewTranscriptPartial(text))
}

func (p *Pipeline) transcribe(ctx context.Context, segment audio.Segment, spanName string) (text string, err error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(
		attribute.Int("segment.bytes", segment.Len()),
		attribute.Float64("segment.seconds", segment.Duration().Seconds()),
	)

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	text, err = p.transcriber.Transcribe(ctx, segment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	text = strings.TrimSpace(text)
	span.SetAttributes(attribute.Int("transcript.length", len(text)))
	return text, nil
}


package pipeline

import (
	"time"

	"github.com/koscakluka/jarvis-voice/core/audio"
)

type PipelineOption func(*Pipeline)

func WithTranscriber(transcriber Transcriber) PipelineOption {
	return func(p *Pipeline) { p.transcriber = transcriber }
}

func WithAgent(agent Agent) PipelineOption {
	return func(p *Pipeline) { p.agent = agent }
}

func WithSynthesizer(synthesizer Synthesizer) PipelineOption {
	return func(p *Pipeline) { p.synthesizer = synthesizer }
}

// WithEncodingInfo sets the format of inbound audio. Zero values are ignored.
func WithEncodingInfo(encoding audio.EncodingInfo) PipelineOption {
	return func(p *Pipeline) {
		if !encoding.IsZero() {
			p.encoding = encoding
		}
	}
}

// WithSegmentWindow sets how much audio is gathered before transcription.
func WithSegmentWindow(window time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if window > 0 {
			p.segmentWindow = window
		}
	}
}

// WithPartialWindow enables partial transcripts of the audio gathered so far,
// one per window of growth. Disabled by default.
func WithPartialWindow(window time.Duration) PipelineOption {
	return func(p *Pipeline) { p.partialWindow = window }
}

// WithCallTimeout bounds each transcription, agent turn and synthesis call.
// Zero means no bound.
func WithCallTimeout(timeout time.Duration) PipelineOption {
	return func(p *Pipeline) { p.callTimeout = timeout }
}

// WithSurfacedErrors makes failed calls emit a PipelineError event in
// addition to being logged.
func WithSurfacedErrors() PipelineOption {
	return func(p *Pipeline) { p.surfaceErrors = true }
}

package pipeline

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/jarvis-voice/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

type pipelineMetrics struct {
	segments              metric.Int64Counter
	transcriptionFailures metric.Int64Counter
	turns                 metric.Int64Counter
	turnFailures          metric.Int64Counter
	synthesisCalls        metric.Int64Counter
	synthesisFailures     metric.Int64Counter
}

func newPipelineMetrics() pipelineMetrics {
	counter := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil {
			logger.Warn("failed to create counter", "name", name, "error", err)
		}
		return c
	}

	return pipelineMetrics{
		segments:              counter("pipeline.segments", "Audio segments submitted for transcription"),
		transcriptionFailures: counter("pipeline.transcription.failures", "Transcription calls that failed"),
		turns:                 counter("pipeline.turns", "Agent turns started"),
		turnFailures:          counter("pipeline.turn.failures", "Agent turns that ended with an error"),
		synthesisCalls:        counter("pipeline.synthesis.calls", "Text fragments sent for synthesis"),
		synthesisFailures:     counter("pipeline.synthesis.failures", "Synthesis calls that failed"),
	}
}

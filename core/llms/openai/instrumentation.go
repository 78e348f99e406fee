package openai

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/jarvis-voice/core/llms/openai"

var tracer = otel.Tracer(scopeName)

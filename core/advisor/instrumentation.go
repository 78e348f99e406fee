package advisor

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/jarvis-voice/core/advisor"

var logger = otelslog.NewLogger(scopeName)

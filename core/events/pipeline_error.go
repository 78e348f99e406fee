package events

// KindPipelineError identifies a non-fatal, stage-local failure.
const KindPipelineError Kind = "error"

// PipelineError reports a failure that was contained by the stage that hit
// it. The stream keeps going after it.
type PipelineError struct {
	Base
	Stage   Stage
	Message string
}

// NewPipelineError creates a pipeline error event.
func NewPipelineError(stage Stage, message string) PipelineError {
	return PipelineError{Base: NewBase(KindPipelineError), Stage: stage, Message: message}
}

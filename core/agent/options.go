package agent

import "github.com/koscakluka/jarvis-voice/core/advisor"

const (
	DefaultInstructions = "You are Jarvis, a concise voice assistant for a financial advisor. " +
		"Answer in short spoken sentences without markdown. " +
		"Use notify_advisor for anything that needs the advisor's attention and " +
		"draft_email when a client email should be prepared for review."

	DefaultMaxToolRounds = 4
)

type AgentOption func(*Agent)

func WithInstructions(instructions string) AgentOption {
	return func(a *Agent) { a.instructions = instructions }
}

func WithNotificationSink(sink advisor.NotificationSink) AgentOption {
	return func(a *Agent) { a.notifications = sink }
}

func WithDraftEmailSink(sink advisor.DraftEmailSink) AgentOption {
	return func(a *Agent) { a.drafts = sink }
}

// WithMaxToolRounds caps how many times one turn may go back to the model
// with tool results.
func WithMaxToolRounds(rounds int) AgentOption {
	return func(a *Agent) {
		if rounds >= 0 {
			a.maxToolRounds = rounds
		}
	}
}

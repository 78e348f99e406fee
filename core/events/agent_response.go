package events

// KindAgentTextDelta identifies an incremental fragment of the agent's reply.
const KindAgentTextDelta Kind = "agent_delta"

// AgentTextDelta carries one streamed fragment of the agent's reply.
type AgentTextDelta struct {
	Base
	Text string
}

// NewAgentTextDelta creates an agent text delta event.
func NewAgentTextDelta(text string) AgentTextDelta {
	return AgentTextDelta{Base: NewBase(KindAgentTextDelta), Text: text}
}

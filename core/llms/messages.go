package llms

// Message is one entry of a conversation sent to an LLM.
type Message struct {
	Role    MessageRole
	Content string

	// ToolCalls are the calls the assistant requested in this message.
	ToolCalls []ToolCall
	// ToolCallID links a tool message to the call it answers.
	ToolCallID string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	Response  string
}

// MessageRole describes who the message is from.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

func UserMessage(content string) Message {
	return Message{Role: MessageRoleUser, Content: content}
}

func AssistantMessage(content string, toolCalls ...ToolCall) Message {
	return Message{Role: MessageRoleAssistant, Content: content, ToolCalls: toolCalls}
}

// ToolMessages returns one tool message per answered call.
func ToolMessages(toolCalls []ToolCall) []Message {
	messages := make([]Message, 0, len(toolCalls))
	for _, toolCall := range toolCalls {
		messages = append(messages, Message{
			Role:       MessageRoleTool,
			Content:    toolCall.Response,
			ToolCallID: toolCall.ID,
		})
	}
	return messages
}

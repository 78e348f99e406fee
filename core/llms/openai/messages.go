package openai

import "github.com/koscakluka/jarvis-voice/core/llms"

type openAIMessage struct {
	Type messageType `json:"type"`

	Role    messageRole `json:"role,omitempty"`
	Content string      `json:"content,omitempty"`

	ToolCallID        string `json:"call_id,omitempty"`
	ToolCallName      string `json:"name,omitempty"`
	ToolCallArguments string `json:"arguments,omitempty"`
	ToolCallOutput    string `json:"output,omitempty"`
	ToolCallStatus    string `json:"status,omitempty"`
}

type messageRole string

const (
	messageRoleDeveloper messageRole = "developer"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

type messageType string

const (
	messageTypeMessage            messageType = "message"
	messageTypeFunctionCall       messageType = "function_call"
	messageTypeFunctionCallOutput messageType = "function_call_output"
)

func toOpenAIMessages(instructions string, history []llms.Message) []openAIMessage {
	messages := []openAIMessage{}
	if instructions != "" {
		messages = append(messages, openAIMessage{
			Type:    messageTypeMessage,
			Role:    messageRoleDeveloper,
			Content: instructions,
		})
	}

	for _, msg := range history {
		switch msg.Role {
		case llms.MessageRoleSystem:
			messages = append(messages, openAIMessage{
				Type:    messageTypeMessage,
				Role:    messageRoleDeveloper,
				Content: msg.Content,
			})

		case llms.MessageRoleUser:
			messages = append(messages, openAIMessage{
				Type:    messageTypeMessage,
				Role:    messageRoleUser,
				Content: msg.Content,
			})

		case llms.MessageRoleAssistant:
			if msg.Content != "" {
				messages = append(messages, openAIMessage{
					Type:    messageTypeMessage,
					Role:    messageRoleAssistant,
					Content: msg.Content,
				})
			}
			for _, toolCall := range msg.ToolCalls {
				messages = append(messages, openAIMessage{
					Type:              messageTypeFunctionCall,
					ToolCallID:        toolCall.ID,
					ToolCallName:      toolCall.Name,
					ToolCallArguments: toolCall.Arguments,
					ToolCallStatus:    "completed",
				})
			}

		case llms.MessageRoleTool:
			messages = append(messages, openAIMessage{
				Type:           messageTypeFunctionCallOutput,
				ToolCallID:     msg.ToolCallID,
				ToolCallOutput: msg.Content,
			})
		}
	}
	return messages
}

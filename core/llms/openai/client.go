// Package openai streams responses from the OpenAI Responses API.
package openai

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/koscakluka/jarvis-voice/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	eventPrefix = "event:"
	chunkPrefix = "data:"
)

type Client struct {
	apiKey  string
	model   string
	baseURL string

	instructions string
	tools        []llms.Tool

	httpClient *http.Client
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) { c.instructions = prompt }
}

func WithTools(tools ...llms.Tool) ClientOption {
	return func(c *Client) { c.tools = append(c.tools, tools...) }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		model:   DefaultModel,
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return client
}

func (c *Client) PromptWithStream(_ context.Context, prompt *string, opts ...llms.StreamingPromptOption) llms.Stream {
	options := llms.ApplyStreamingOptions(llms.StreamingPromptOptions{
		Instructions: c.instructions,
		Tools:        c.tools,
	}, opts...)

	messages := toOpenAIMessages(options.Instructions, options.Messages)
	if prompt != nil {
		messages = append(messages, openAIMessage{
			Type:    messageTypeMessage,
			Role:    messageRoleUser,
			Content: *prompt,
		})
	}

	return &Stream{
		client:   c,
		tools:    toOpenAITools(options.Tools),
		forced:   options.ForcedToolsCall,
		messages: messages,
	}
}

type openAITool struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

func toOpenAITools(tools []llms.Tool) []openAITool {
	if len(tools) == 0 {
		return nil
	}
	converted := make([]openAITool, 0, len(tools))
	for _, tool := range tools {
		converted = append(converted, openAITool{
			Type:        "function",
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
		})
	}
	return converted
}

// Package groq streams chat completions from Groq's OpenAI compatible API.
package groq

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/jarvis-voice/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "openai/gpt-oss-20b"

	endMessage  = "[DONE]"
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

// WithBaseURL points the client at a different OpenAI compatible endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) { c.instructions = prompt }
}

// WithTools registers tools offered on every prompt.
func WithTools(tools ...llms.Tool) ClientOption {
	return func(c *Client) { c.tools = append(c.tools, tools...) }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		apiKey:  os.Getenv("GROQ_API_KEY"),
		model:   DefaultModel,
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
	}
	return client
}

func (c *Client) PromptWithStream(_ context.Context, prompt *string, opts ...llms.StreamingPromptOption) llms.Stream {
	options := llms.ApplyStreamingOptions(llms.StreamingPromptOptions{
		Instructions: c.instructions,
		Tools:        c.tools,
	}, opts...)

	messages := toMessages(options.Instructions, options.Messages)
	if prompt != nil {
		messages = append(messages, message{Role: messageRoleUser, Content: *prompt})
	}

	var tools []Tool
	if len(options.Tools) > 0 {
		if err := copier.Copy(&tools, options.Tools); err != nil {
			logger.Warn("failed to convert tools", "error", err)
		}
	}

	return &Stream{
		client:   c,
		tools:    tools,
		forced:   options.ForcedToolsCall,
		messages: messages,
	}
}

// Tool is the chat completions wire form of llms.Tool.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

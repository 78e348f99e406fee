package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koscakluka/jarvis-voice/core/llms"
)

type lookupArgs struct {
	Ticker string `json:"ticker"`
}

func newTestServer(t *testing.T, lines []string, inspect func(*http.Request, requestBody)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if inspect != nil {
			inspect(r, body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n\n", line)
		}
	}))
}

func collect(t *testing.T, stream llms.Stream) (string, []llms.ToolCall) {
	t.Helper()
	var content strings.Builder
	var calls []llms.ToolCall
	for chunk, err := range stream.Chunks(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		switch chunk := chunk.(type) {
		case llms.StreamContentChunk:
			content.WriteString(chunk.Content())
		case llms.StreamToolCallChunk:
			calls = append(calls, chunk.ToolCall())
		}
	}
	return content.String(), calls
}

func TestStreamYieldsContentInOrder(t *testing.T) {
	server := newTestServer(t, []string{
		`{"choices":[{"delta":{"role":"assistant"}}]}`,
		`{"choices":[{"delta":{"content":"Your "}}]}`,
		`{"choices":[{"delta":{"reasoning":"thinking"}}]}`,
		`{"choices":[{"delta":{"content":"risk is moderate."}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}],"x_groq":{"usage":{"prompt_tokens":10,"completion_tokens":4,"total_tokens":14}}}`,
		`[DONE]`,
	}, func(r *http.Request, body requestBody) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if !body.Stream || body.ToolChoice != nil {
			t.Errorf("expected streaming request without tool choice, got %+v", body)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != messageRoleSystem || body.Messages[1].Content != "hello" {
			t.Errorf("unexpected messages: %+v", body.Messages)
		}
	})
	defer server.Close()

	client := NewClient(WithAPIKey("test-key"), WithBaseURL(server.URL), WithSystemPrompt("be brief"), WithHTTPClient(server.Client()))
	prompt := "hello"
	content, calls := collect(t, client.PromptWithStream(context.Background(), &prompt))

	if content != "Your risk is moderate." {
		t.Fatalf("expected joined content, got %q", content)
	}
	if len(calls) != 0 {
		t.Fatalf("expected no tool calls, got %+v", calls)
	}
}

func TestStreamAssemblesFragmentedToolCalls(t *testing.T) {
	server := newTestServer(t, []string{
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"lookup","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"ticker\":"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"ACME\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	}, func(_ *http.Request, body requestBody) {
		if body.ToolChoice == nil || *body.ToolChoice != "auto" {
			t.Errorf("expected auto tool choice, got %v", body.ToolChoice)
		}
		if len(body.Tools) != 1 || body.Tools[0].Function.Name != "lookup" || body.Tools[0].Function.Parameters == nil {
			t.Errorf("expected converted lookup tool, got %+v", body.Tools)
		}
	})
	defer server.Close()

	tool := llms.NewTool("lookup", "Look up a ticker", func(context.Context, lookupArgs) (string, error) { return "", nil })
	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	content, calls := collect(t, client.PromptWithStream(context.Background(), nil, llms.WithTools(tool)))

	if content != "" {
		t.Fatalf("expected no content, got %q", content)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Name != "lookup" || calls[0].Arguments != `{"ticker":"ACME"}` {
		t.Fatalf("unexpected tool call: %+v", calls[0])
	}
}

func TestForcedToolsRequireToolChoice(t *testing.T) {
	server := newTestServer(t, []string{`[DONE]`}, func(_ *http.Request, body requestBody) {
		if body.ToolChoice == nil || *body.ToolChoice != "required" {
			t.Errorf("expected required tool choice, got %v", body.ToolChoice)
		}
	})
	defer server.Close()

	tool := llms.NewTool("lookup", "Look up a ticker", func(context.Context, lookupArgs) (string, error) { return "", nil })
	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	collect(t, client.PromptWithStream(context.Background(), nil, llms.WithForcedTools(tool)))
}

func TestStreamReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	var gotErr error
	for _, err := range client.PromptWithStream(context.Background(), nil).Chunks(context.Background()) {
		if err != nil {
			gotErr = err
		}
	}
	if gotErr == nil || !strings.Contains(gotErr.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", gotErr)
	}
}

func TestToMessagesKeepsToolHistory(t *testing.T) {
	history := []llms.Message{
		llms.UserMessage("check ACME"),
		llms.AssistantMessage("", llms.ToolCall{ID: "call_1", Name: "lookup", Arguments: `{}`, Response: "up 2%"}),
	}
	history = append(history, llms.ToolMessages(history[1].ToolCalls)...)

	messages := toMessages("", history)
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[1].Role != messageRoleAssistant || len(messages[1].ToolCalls) != 1 || messages[1].ToolCalls[0].Type != "function" {
		t.Fatalf("unexpected assistant message: %+v", messages[1])
	}
	if messages[2].Role != messageRoleTool || messages[2].ToolCallID != "call_1" || messages[2].Content != "up 2%" {
		t.Fatalf("unexpected tool message: %+v", messages[2])
	}
}

package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/koscakluka/jarvis-voice/core/llms"
	"github.com/koscakluka/jarvis-voice/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Stream struct {
	client *Client

	tools    []Tool
	forced   bool
	messages []message
}

func (s *Stream) Chunks(ctx context.Context) iter.Seq2[llms.StreamChunk, error] {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.client.model))
		var toolNames []string
		for _, tool := range s.tools {
			toolNames = append(toolNames, tool.Function.Name)
		}
		span.SetAttributes(attribute.StringSlice("request.available_tools", toolNames))

		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
		}

		var toolChoice *string
		if len(s.tools) > 0 {
			toolChoice = utils.Ptr("auto")
			if s.forced {
				toolChoice = utils.Ptr("required")
			}
		}

		requestBodyBytes, err := json.Marshal(requestBody{
			Model:         s.client.model,
			Messages:      s.messages,
			Stream:        true,
			Tools:         s.tools,
			ToolChoice:    toolChoice,
			StreamOptions: &streamOptions{IncludeUsage: true},
		})
		if err != nil {
			fail(fmt.Errorf("error marshalling JSON: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+"/chat/completions", bytes.NewReader(requestBodyBytes))
		if err != nil {
			fail(fmt.Errorf("error creating HTTP request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.client.apiKey)

		requestStarted := time.Now()
		resp, err := s.client.httpClient.Do(req)
		if err != nil {
			fail(fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			if errorBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
				span.SetAttributes(attribute.String("response.error", string(errorBody)))
			}
			fail(fmt.Errorf("non-OK HTTP status: %s", resp.Status))
			return
		}

		pending := pendingToolCalls{}
		flushToolCalls := func(finishReason *string) bool {
			calls := pending.drain()
			if len(calls) > 0 {
				names := make([]string, 0, len(calls))
				for _, call := range calls {
					names = append(names, call.Name)
				}
				span.SetAttributes(attribute.StringSlice("response.tool_calls", names))
			}
			for _, call := range calls {
				if !yield(llms.ToolCallChunk{Finish: finishReason, Call: call}, nil) {
					return false
				}
			}
			return true
		}

		firstChunk := true
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
			if len(chunk) == 0 {
				continue
			}
			if firstChunk {
				firstChunk = false
				span.SetAttributes(attribute.Float64("response.request_to_first_token_time", time.Since(requestStarted).Seconds()))
				span.AddEvent("received first chunk", trace.WithTimestamp(time.Now()))
			}
			if chunk == endMessage {
				break
			}

			var responseBody streamingResponseBody
			if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
				err = fmt.Errorf("error unmarshalling JSON: %w", err)
				span.RecordError(err)
				if !yield(nil, err) {
					return
				}
				continue
			}

			for _, choice := range responseBody.Choices {
				delta := choice.Delta
				pending.add(delta.ToolCalls)

				if delta.Reasoning != "" {
					if !yield(llms.ReasoningChunk{Text: delta.Reasoning}, nil) {
						return
					}
				}
				if delta.Content != "" {
					if !yield(llms.ContentChunk{Finish: choice.FinishReason, Text: delta.Content}, nil) {
						return
					}
				}
				if choice.FinishReason != nil {
					if !flushToolCalls(choice.FinishReason) {
						return
					}
				}
			}

			if usage := responseBody.usage(); usage != nil {
				span.SetAttributes(
					attribute.Int("usage.input", usage.PromptTokens),
					attribute.Int("usage.output", usage.CompletionTokens),
					attribute.Int("usage.total", usage.TotalTokens),
				)
				stats := llms.Usage{
					InputTokens:  usage.PromptTokens,
					OutputTokens: usage.CompletionTokens,
					TotalTokens:  usage.TotalTokens,
					QueueTime:    usage.QueueTime,
					TotalTime:    usage.TotalTime,
				}
				if usage.CompletionTokensDetails != nil {
					stats.ReasoningTokens = usage.CompletionTokensDetails.ReasoningTokens
				}
				if !yield(llms.UsageChunk{Stats: stats}, nil) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			fail(fmt.Errorf("error reading streamed response: %w", err))
			return
		}
		flushToolCalls(nil)
	}
}

// pendingToolCalls stitches tool call fragments back together by index.
type pendingToolCalls struct {
	order []int
	calls map[int]*llms.ToolCall
}

func (p *pendingToolCalls) add(fragments []toolCall) {
	for i, fragment := range fragments {
		index := i
		if fragment.Index != nil {
			index = *fragment.Index
		}
		if p.calls == nil {
			p.calls = map[int]*llms.ToolCall{}
		}
		call, ok := p.calls[index]
		if !ok {
			call = &llms.ToolCall{}
			p.calls[index] = call
			p.order = append(p.order, index)
		}
		if fragment.ID != "" {
			call.ID = fragment.ID
		}
		if fragment.Function.Name != "" {
			call.Name = fragment.Function.Name
		}
		call.Arguments += fragment.Function.Arguments
	}
}

func (p *pendingToolCalls) drain() []llms.ToolCall {
	calls := make([]llms.ToolCall, 0, len(p.order))
	for _, index := range p.order {
		calls = append(calls, *p.calls[index])
	}
	p.order = nil
	p.calls = nil
	return calls
}

type requestBody struct {
	Model         string         `json:"model"`
	Messages      []message      `json:"messages"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
	ToolChoice    *string        `json:"tool_choice,omitempty"`
	Tools         []Tool         `json:"tools,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type responseUsage struct {
	QueueTime               float64 `json:"queue_time"`
	PromptTokens            int     `json:"prompt_tokens"`
	CompletionTokens        int     `json:"completion_tokens"`
	TotalTokens             int     `json:"total_tokens"`
	TotalTime               float64 `json:"total_time"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

type streamingResponseBody struct {
	Choices []struct {
		Delta struct {
			Role      string     `json:"role,omitempty"`
			Content   string     `json:"content,omitempty"`
			ToolCalls []toolCall `json:"tool_calls,omitempty"`
			Reasoning string     `json:"reasoning,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *responseUsage `json:"usage"`
	// Groq reports usage under x_groq on the final chunk.
	XGroq *struct {
		Usage *responseUsage `json:"usage"`
	} `json:"x_groq,omitempty"`
}

func (b streamingResponseBody) usage() *responseUsage {
	if b.Usage != nil {
		return b.Usage
	}
	if b.XGroq != nil {
		return b.XGroq.Usage
	}
	return nil
}

package openai

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

	tools    []openAITool
	forced   bool
	messages []openAIMessage
}

func (s *Stream) Chunks(ctx context.Context) iter.Seq2[llms.StreamChunk, error] {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.client.model))

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
			Model:      s.client.model,
			Input:      s.messages,
			Stream:     true,
			Tools:      s.tools,
			ToolChoice: toolChoice,
		})
		if err != nil {
			fail(fmt.Errorf("error marshalling JSON: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+"/responses", bytes.NewReader(requestBodyBytes))
		if err != nil {
			fail(fmt.Errorf("error creating HTTP request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.client.apiKey)

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

		usage := llms.Usage{}
		lapTime := time.Now()
		event := ""

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
				event = ""
				continue
			case strings.HasPrefix(line, eventPrefix):
				event = strings.TrimSpace(strings.TrimPrefix(line, eventPrefix))
				continue
			case !strings.HasPrefix(line, chunkPrefix):
				continue
			}
			chunk := []byte(strings.TrimSpace(strings.TrimPrefix(line, chunkPrefix)))

			switch streamingEventType(event) {
			case streamingEventResponseInProgress:
				usage.QueueTime = time.Since(lapTime).Seconds()

			case streamingEventResponseOutputTextDelta:
				var responseBody streamingBodyResponseTextDelta
				if err := json.Unmarshal(chunk, &responseBody); err != nil {
					if !yield(nil, fmt.Errorf("error unmarshalling JSON: %w", err)) {
						return
					}
					continue
				}
				if !yield(llms.ContentChunk{Text: responseBody.Delta}, nil) {
					return
				}

			case streamingEventResponseReasoningSummaryTextDelta, streamingEventResponseReasoningTextDelta:
				var responseBody streamingBodyResponseTextDelta
				if err := json.Unmarshal(chunk, &responseBody); err != nil {
					if !yield(nil, fmt.Errorf("error unmarshalling JSON: %w", err)) {
						return
					}
					continue
				}
				if !yield(llms.ReasoningChunk{Text: responseBody.Delta}, nil) {
					return
				}

			case streamingEventResponseOutputItemDone:
				var responseBody streamingBodyOutputItemDone
				if err := json.Unmarshal(chunk, &responseBody); err != nil {
					if !yield(nil, fmt.Errorf("error unmarshalling JSON: %w", err)) {
						return
					}
					continue
				}
				if responseBody.Item.Type != string(messageTypeFunctionCall) {
					continue
				}
				span.AddEvent("tool call", trace.WithAttributes(attribute.String("tool.name", responseBody.Item.Name)))
				if !yield(llms.ToolCallChunk{Call: llms.ToolCall{
					ID:        responseBody.Item.CallID,
					Name:      responseBody.Item.Name,
					Arguments: responseBody.Item.Arguments,
				}}, nil) {
					return
				}

			case streamingEventResponseFailed, streamingEventError:
				fail(fmt.Errorf("response failed: %s", chunk))
				return

			case streamingEventResponseCompleted:
				usage.TotalTime = time.Since(lapTime).Seconds()

				var responseBody streamingBodyResponseCompleted
				if err := json.Unmarshal(chunk, &responseBody); err == nil && responseBody.Response.Usage != nil {
					stats := responseBody.Response.Usage
					usage.InputTokens = stats.InputTokens
					usage.OutputTokens = stats.OutputTokens
					usage.TotalTokens = stats.TotalTokens
					if stats.OutputTokensDetails != nil {
						usage.ReasoningTokens = stats.OutputTokensDetails.ReasoningTokens
					}
					span.SetAttributes(
						attribute.Int("usage.input", usage.InputTokens),
						attribute.Int("usage.output", usage.OutputTokens),
					)
				}
				if !yield(llms.UsageChunk{Finish: utils.Ptr("stop"), Stats: usage}, nil) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			fail(fmt.Errorf("error reading streamed response: %w", err))
		}
	}
}

type requestBody struct {
	Model      string          `json:"model"`
	Input      []openAIMessage `json:"input"`
	Stream     bool            `json:"stream"`
	ToolChoice *string         `json:"tool_choice,omitempty"`
	Tools      []openAITool    `json:"tools,omitempty"`
}

type streamingEventType string

const (
	streamingEventResponseOutputTextDelta           streamingEventType = "response.output_text.delta"
	streamingEventResponseOutputItemDone            streamingEventType = "response.output_item.done"
	streamingEventResponseReasoningTextDelta        streamingEventType = "response.reasoning_text.delta"
	streamingEventResponseReasoningSummaryTextDelta streamingEventType = "response.reasoning_summary_text.delta"
	streamingEventResponseInProgress                streamingEventType = "response.in_progress"
	streamingEventResponseCompleted                 streamingEventType = "response.completed"
	streamingEventResponseFailed                    streamingEventType = "response.failed"
	streamingEventError                             streamingEventType = "error"
)

type streamingBodyResponseTextDelta struct {
	Delta string `json:"delta"`
}

type streamingBodyOutputItemDone struct {
	Item struct {
		Type      string `json:"type"`
		Arguments string `json:"arguments"`
		CallID    string `json:"call_id"`
		Name      string `json:"name"`
	} `json:"item"`
}

type streamingBodyResponseCompleted struct {
	Response struct {
		Usage *struct {
			InputTokens         int `json:"input_tokens"`
			OutputTokens        int `json:"output_tokens"`
			TotalTokens         int `json:"total_tokens"`
			OutputTokensDetails *struct {
				ReasoningTokens int `json:"reasoning_tokens"`
			} `json:"output_tokens_details"`
		} `json:"usage"`
	} `json:"response"`
}

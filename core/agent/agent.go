// Package agent runs Jarvis conversation turns against a streaming LLM,
// keeping one message thread per session.
package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/koscakluka/jarvis-voice/core/advisor"
	"github.com/koscakluka/jarvis-voice/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrMissingLLM = errors.New("missing llm")

type Agent struct {
	llm           llms.StreamingLLM
	instructions  string
	maxToolRounds int
	tools         []llms.Tool

	notifications advisor.NotificationSink
	drafts        advisor.DraftEmailSink

	mu      sync.Mutex
	threads map[string]*thread
}

type thread struct {
	mu       sync.Mutex
	messages []llms.Message
}

func New(llm llms.StreamingLLM, opts ...AgentOption) (*Agent, error) {
	if llm == nil {
		return nil, ErrMissingLLM
	}
	a := &Agent{
		llm:           llm,
		instructions:  DefaultInstructions,
		maxToolRounds: DefaultMaxToolRounds,
		threads:       map[string]*thread{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.tools = a.buildTools()
	return a, nil
}

// Warm validates the tool definitions before the first turn.
func (a *Agent) Warm(ctx context.Context) error {
	var errs []error
	for _, tool := range a.tools {
		if err := tool.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("agent tools: %w", err)
	}
	logger.DebugContext(ctx, "agent tools validated", "count", len(a.tools))
	return nil
}

// EndSession drops the thread kept for sessionID.
func (a *Agent) EndSession(sessionID string) {
	a.mu.Lock()
	delete(a.threads, sessionID)
	a.mu.Unlock()
}

func (a *Agent) thread(sessionID string) *thread {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.threads[sessionID]
	if !ok {
		t = &thread{}
		a.threads[sessionID] = t
	}
	return t
}

// History returns a copy of the messages recorded for sessionID.
func (a *Agent) History(sessionID string) []llms.Message {
	t := a.thread(sessionID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]llms.Message(nil), t.messages...)
}

// StreamTurn answers userText on the session's thread and yields the reply
// text as the model produces it. Tool calls are executed between model
// rounds and never yielded.
func (a *Agent) StreamTurn(ctx context.Context, sessionID, userText string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "agent turn")
		defer span.End()
		span.SetAttributes(attribute.String("session.id", sessionID))

		t := a.thread(sessionID)
		t.mu.Lock()
		defer t.mu.Unlock()

		turnMessages := []llms.Message{llms.UserMessage(userText)}
		defer func() {
			t.messages = append(t.messages, turnMessages...)
		}()

		for round := 0; ; round++ {
			opts := []llms.StreamingPromptOption{
				llms.WithSystemPrompt(a.instructions),
				llms.WithMessages(t.messages...),
				llms.WithMessages(turnMessages...),
			}
			// The last allowed round offers no tools so the model has to answer.
			if round < a.maxToolRounds {
				opts = append(opts, llms.WithTools(a.tools...))
			}

			var response strings.Builder
			var toolCalls []llms.ToolCall
			for chunk, err := range a.llm.PromptWithStream(ctx, nil, opts...).Chunks(ctx) {
				if err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					if response.Len() > 0 {
						turnMessages = append(turnMessages, llms.AssistantMessage(response.String()))
					}
					yield("", fmt.Errorf("agent stream failed: %w", err))
					return
				}

				switch chunk := chunk.(type) {
				case llms.StreamContentChunk:
					if chunk.Content() == "" {
						continue
					}
					response.WriteString(chunk.Content())
					if !yield(chunk.Content(), nil) {
						turnMessages = append(turnMessages, llms.AssistantMessage(response.String()))
						return
					}
				case llms.StreamToolCallChunk:
					toolCalls = append(toolCalls, chunk.ToolCall())
				}
			}

			if len(toolCalls) == 0 {
				turnMessages = append(turnMessages, llms.AssistantMessage(response.String()))
				span.SetAttributes(attribute.Int("agent.tool_rounds", round))
				return
			}

			if round >= a.maxToolRounds {
				logger.WarnContext(ctx, "tool round limit reached, ending turn", "rounds", round)
				turnMessages = append(turnMessages, llms.AssistantMessage(response.String()))
				return
			}

			for i := range toolCalls {
				toolCalls[i].Response = a.callTool(ctx, toolCalls[i])
			}
			turnMessages = append(turnMessages, llms.AssistantMessage(response.String(), toolCalls...))
			turnMessages = append(turnMessages, llms.ToolMessages(toolCalls)...)
		}
	}
}

func (a *Agent) callTool(ctx context.Context, toolCall llms.ToolCall) string {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", toolCall.Name))

	response, err := llms.CallTool(ctx, a.tools, toolCall)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "tool call failed", "tool", toolCall.Name, "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	return response
}

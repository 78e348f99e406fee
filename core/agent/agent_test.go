package agent

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/koscakluka/jarvis-voice/core/advisor"
	"github.com/koscakluka/jarvis-voice/core/llms"
)

type llmStub struct {
	rounds [][]llms.StreamChunk
	err    error

	calls []llms.StreamingPromptOptions
}

func (l *llmStub) PromptWithStream(_ context.Context, _ *string, opts ...llms.StreamingPromptOption) llms.Stream {
	options := llms.ApplyStreamingOptions(llms.StreamingPromptOptions{}, opts...)
	round := len(l.calls)
	l.calls = append(l.calls, options)

	var chunks []llms.StreamChunk
	if round < len(l.rounds) {
		chunks = l.rounds[round]
	}
	return streamStub{chunks: chunks, err: l.err}
}

type streamStub struct {
	chunks []llms.StreamChunk
	err    error
}

func (s streamStub) Chunks(context.Context) iter.Seq2[llms.StreamChunk, error] {
	return func(yield func(llms.StreamChunk, error) bool) {
		for _, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

func collect(t *testing.T, seq iter.Seq2[string, error]) ([]string, error) {
	t.Helper()
	var texts []string
	for text, err := range seq {
		if err != nil {
			return texts, err
		}
		texts = append(texts, text)
	}
	return texts, nil
}

func TestStreamTurnYieldsContentOnly(t *testing.T) {
	llm := &llmStub{rounds: [][]llms.StreamChunk{{
		llms.ReasoningChunk{Text: "thinking"},
		llms.ContentChunk{Text: "Hello"},
		llms.ContentChunk{Text: ""},
		llms.ContentChunk{Text: " there."},
		llms.UsageChunk{Stats: llms.Usage{TotalTokens: 12}},
	}}}
	a, err := New(llm)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	texts, err := collect(t, a.StreamTurn(context.Background(), "s1", "hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(texts, "|") != "Hello| there." {
		t.Fatalf("expected content increments, got %q", texts)
	}
	if llm.calls[0].Instructions != DefaultInstructions {
		t.Fatalf("expected default instructions, got %q", llm.calls[0].Instructions)
	}
}

func TestStreamTurnRunsToolsAndFiltersThem(t *testing.T) {
	store := advisor.NewStore()
	llm := &llmStub{rounds: [][]llms.StreamChunk{
		{llms.ToolCallChunk{Call: llms.ToolCall{ID: "c1", Name: "notify_advisor", Arguments: `{"title":"Client risk","message":"Check David"}`}}},
		{llms.ContentChunk{Text: "I let the advisor know."}},
	}}
	a, err := New(llm, WithNotificationSink(store), WithDraftEmailSink(store))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	texts, err := collect(t, a.StreamTurn(context.Background(), "s1", "flag David"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(texts) != 1 || texts[0] != "I let the advisor know." {
		t.Fatalf("expected only the final answer, got %q", texts)
	}

	notifications := store.Notifications(10)
	if len(notifications) != 1 || notifications[0].Title != "Client risk" {
		t.Fatalf("expected stored notification, got %+v", notifications)
	}

	second := llm.calls[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != llms.MessageRoleTool || last.ToolCallID != "c1" || !strings.Contains(last.Content, "Client risk") {
		t.Fatalf("expected tool response in second round, got %+v", last)
	}
}

func TestStreamTurnStopsOfferingToolsAfterLimit(t *testing.T) {
	toolRound := []llms.StreamChunk{llms.ToolCallChunk{Call: llms.ToolCall{ID: "c", Name: "draft_email", Arguments: `{"to":"a@b.c","subject":"Hi","body":"x"}`}}}
	llm := &llmStub{rounds: [][]llms.StreamChunk{toolRound, toolRound, toolRound}}
	a, err := New(llm, WithDraftEmailSink(advisor.NewStore()), WithMaxToolRounds(2))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := collect(t, a.StreamTurn(context.Background(), "s1", "email")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(llm.calls) != 3 {
		t.Fatalf("expected 3 model rounds, got %d", len(llm.calls))
	}
	if len(llm.calls[2].Tools) != 0 {
		t.Fatalf("expected no tools on the final round, got %d", len(llm.calls[2].Tools))
	}
}

func TestThreadsAreKeptPerSession(t *testing.T) {
	llm := &llmStub{rounds: [][]llms.StreamChunk{
		{llms.ContentChunk{Text: "one"}},
		{llms.ContentChunk{Text: "two"}},
		{llms.ContentChunk{Text: "three"}},
	}}
	a, _ := New(llm)

	_, _ = collect(t, a.StreamTurn(context.Background(), "s1", "first"))
	_, _ = collect(t, a.StreamTurn(context.Background(), "s1", "second"))
	_, _ = collect(t, a.StreamTurn(context.Background(), "s2", "other"))

	if got := len(llm.calls[1].Messages); got != 3 {
		t.Fatalf("expected previous turn plus new prompt, got %d messages", got)
	}
	if got := len(llm.calls[2].Messages); got != 1 {
		t.Fatalf("expected a fresh thread for another session, got %d messages", got)
	}

	a.EndSession("s1")
	if got := len(a.History("s1")); got != 0 {
		t.Fatalf("expected history dropped after EndSession, got %d", got)
	}
}

func TestStreamTurnSurfacesStreamError(t *testing.T) {
	llm := &llmStub{rounds: [][]llms.StreamChunk{{llms.ContentChunk{Text: "partial"}}}, err: errors.New("connection reset")}
	a, _ := New(llm)

	texts, err := collect(t, a.StreamTurn(context.Background(), "s1", "hi"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(texts) != 1 || texts[0] != "partial" {
		t.Fatalf("expected text before the error, got %q", texts)
	}
	if history := a.History("s1"); len(history) != 2 || history[1].Content != "partial" {
		t.Fatalf("expected partial reply recorded, got %+v", history)
	}
}

func TestWarmValidatesTools(t *testing.T) {
	a, _ := New(&llmStub{})
	if err := a.Warm(context.Background()); err != nil {
		t.Fatalf("expected tools to validate, got %v", err)
	}
	if _, err := New(nil); !errors.Is(err, ErrMissingLLM) {
		t.Fatalf("expected ErrMissingLLM, got %v", err)
	}
}

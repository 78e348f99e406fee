package llms

import (
	"context"
	"iter"
)

// StreamingLLM is a model that streams its response back in chunks.
type StreamingLLM interface {
	PromptWithStream(ctx context.Context, prompt *string, opts ...StreamingPromptOption) Stream
}

type Stream interface {
	Chunks(context.Context) iter.Seq2[StreamChunk, error]
}

type StreamChunk interface {
	FinishReason() *string
}

type StreamReasoningChunk interface {
	StreamChunk
	Reasoning() string
}

type StreamContentChunk interface {
	StreamChunk
	Content() string
}

type StreamToolCallChunk interface {
	StreamChunk
	ToolCall() ToolCall
}

type StreamUsageChunk interface {
	StreamChunk
	Usage() Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	// ReasoningTokens is the part of OutputTokens spent on reasoning.
	ReasoningTokens int
	TotalTokens     int

	// QueueTime and TotalTime are in seconds and may be approximations.
	QueueTime float64
	TotalTime float64
}

// ContentChunk, ReasoningChunk, ToolCallChunk and UsageChunk are the concrete
// chunks backends yield.
type ContentChunk struct {
	Finish *string
	Text   string
}

func (c ContentChunk) FinishReason() *string { return c.Finish }
func (c ContentChunk) Content() string       { return c.Text }

type ReasoningChunk struct {
	Finish *string
	Text   string
}

func (c ReasoningChunk) FinishReason() *string { return c.Finish }
func (c ReasoningChunk) Reasoning() string     { return c.Text }

type ToolCallChunk struct {
	Finish *string
	Call   ToolCall
}

func (c ToolCallChunk) FinishReason() *string { return c.Finish }
func (c ToolCallChunk) ToolCall() ToolCall    { return c.Call }

type UsageChunk struct {
	Finish *string
	Stats  Usage
}

func (c UsageChunk) FinishReason() *string { return c.Finish }
func (c UsageChunk) Usage() Usage          { return c.Stats }

package llms

type StreamingPromptOptions struct {
	Instructions    string
	Messages        []Message
	Tools           []Tool
	ForcedToolsCall bool
}

type StreamingPromptOption func(*StreamingPromptOptions)

// WithSystemPrompt sets the instructions for the prompt. Repeating this option
// overwrites the previous instructions.
func WithSystemPrompt(prompt string) StreamingPromptOption {
	return func(opts *StreamingPromptOptions) {
		opts.Instructions = prompt
	}
}

// WithMessages appends conversation history to the prompt.
func WithMessages(messages ...Message) StreamingPromptOption {
	return func(opts *StreamingPromptOptions) {
		opts.Messages = append(opts.Messages, messages...)
	}
}

// WithTools adds tools the model is allowed to call.
func WithTools(tools ...Tool) StreamingPromptOption {
	return func(opts *StreamingPromptOptions) {
		opts.Tools = append(opts.Tools, tools...)
	}
}

// WithForcedTools requires the model to call one of the available tools.
func WithForcedTools(tools ...Tool) StreamingPromptOption {
	return func(opts *StreamingPromptOptions) {
		opts.Tools = append(opts.Tools, tools...)
		opts.ForcedToolsCall = true
	}
}

func ApplyStreamingOptions(base StreamingPromptOptions, opts ...StreamingPromptOption) StreamingPromptOptions {
	options := base
	options.Messages = append([]Message(nil), base.Messages...)
	options.Tools = append([]Tool(nil), base.Tools...)
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

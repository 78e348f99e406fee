// Package speechtotext holds what the transcription backends share.
package speechtotext

import "errors"

var (
	ErrMissingAPIKey = errors.New("missing api key")
	ErrEmptySegment  = errors.New("empty audio segment")
)

type TranscriptionOptions struct {
	APIKey   string
	Model    string
	Language string
	// BaseURL replaces the provider endpoint, mostly for tests.
	BaseURL string
}

type TranscriptionOption func(*TranscriptionOptions)

func WithAPIKey(apiKey string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.APIKey = apiKey
	}
}

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Model = model
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithBaseURL(baseURL string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.BaseURL = baseURL
	}
}

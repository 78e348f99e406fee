// Package texttospeech holds what the synthesis backends share.
package texttospeech

import (
	"errors"
	"io"
	"iter"

	"github.com/koscakluka/jarvis-voice/core/audio"
)

var (
	ErrMissingAPIKey = errors.New("missing api key")
	// ErrRateLimited marks failures the provider attributes to load.
	ErrRateLimited = errors.New("synthesis rate limited")
	// ErrRejected marks input the provider refuses to synthesize.
	ErrRejected = errors.New("synthesis input rejected")
)

// DefaultChunkSize is how much audio a backend reads before yielding.
const DefaultChunkSize = 4096

type TextToSpeechOptions struct {
	APIKey string
	Model  string
	Voice  string
	// BaseURL replaces the provider endpoint, mostly for tests.
	BaseURL string

	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithAPIKey(apiKey string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.APIKey = apiKey }
}

func WithModel(model string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.Model = model }
}

func WithVoice(voice string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.Voice = voice }
}

func WithBaseURL(baseURL string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.BaseURL = baseURL }
}

// WithEncodingInfo requests output audio in the given encoding. Zero values
// are ignored so the backend default stays in place.
func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

// ReadChunks yields r in chunks of at most size bytes as they arrive. Each
// yielded slice is freshly allocated.
func ReadChunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func([]byte, error) bool) {
		for {
			buf := make([]byte, size)
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			switch {
			case err == nil:
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				return
			default:
				yield(nil, err)
				return
			}
		}
	}
}

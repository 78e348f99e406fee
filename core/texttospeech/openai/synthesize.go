// Package openai synthesizes speech with OpenAI's audio speech endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"strings"

	"github.com/koscakluka/jarvis-voice/core/audio"
	"github.com/koscakluka/jarvis-voice/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "tts-1"
	DefaultVoice   = "alloy"

	// OutputSampleRate is fixed by the API for the pcm response format.
	OutputSampleRate = 24000
)

type Synthesizer struct {
	options    texttospeech.TextToSpeechOptions
	httpClient *http.Client
}

func NewSynthesizer(opts ...texttospeech.TextToSpeechOption) (*Synthesizer, error) {
	options := texttospeech.TextToSpeechOptions{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   DefaultModel,
		Voice:   DefaultVoice,
		BaseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.APIKey == "" {
		return nil, fmt.Errorf("openai synthesis: %w", texttospeech.ErrMissingAPIKey)
	}
	options.BaseURL = strings.TrimRight(options.BaseURL, "/")
	options.EncodingInfo = audio.EncodingInfo{SampleRate: OutputSampleRate, Channels: 1, Format: audio.EncodingLinear16}

	return &Synthesizer{
		options:    options,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}, nil
}

// EncodingInfo reports the format of the audio Synthesize yields.
func (s *Synthesizer) EncodingInfo() audio.EncodingInfo {
	return s.options.EncodingInfo
}

// Synthesize requests raw PCM for text and yields the body as it streams in.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		ctx, span := tracer.Start(ctx, "synthesize speech")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.model", s.options.Model),
			attribute.String("request.voice", s.options.Voice),
			attribute.Int("request.text_length", len(text)),
		)

		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
		}

		body, err := json.Marshal(speechRequest{
			Model:          s.options.Model,
			Voice:          s.options.Voice,
			Input:          text,
			ResponseFormat: "pcm",
		})
		if err != nil {
			fail(fmt.Errorf("error marshalling JSON: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.options.BaseURL+"/audio/speech", bytes.NewReader(body))
		if err != nil {
			fail(fmt.Errorf("error creating HTTP request: %w", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.options.APIKey)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			fail(fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			logger.WarnContext(ctx, "speech request failed", "status", resp.StatusCode, "body", string(errorBody))
			fail(classifyStatus(resp))
			return
		}

		total := 0
		for chunk, err := range texttospeech.ReadChunks(resp.Body, texttospeech.DefaultChunkSize) {
			if err != nil {
				fail(fmt.Errorf("error reading speech audio: %w", err))
				return
			}
			total += len(chunk)
			if !yield(chunk, nil) {
				break
			}
		}
		span.SetAttributes(attribute.Int("response.audio_bytes", total))
	}
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", texttospeech.ErrRateLimited, resp.Status)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", texttospeech.ErrRejected, resp.Status)
	}
	return fmt.Errorf("non-OK HTTP status: %s", resp.Status)
}

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// Package whisper transcribes audio segments with OpenAI's transcription
// endpoint.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/koscakluka/jarvis-voice/core/audio"
	"github.com/koscakluka/jarvis-voice/core/speechtotext"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "whisper-1"
)

type Transcriber struct {
	options    speechtotext.TranscriptionOptions
	httpClient *http.Client
}

func NewTranscriber(opts ...speechtotext.TranscriptionOption) (*Transcriber, error) {
	options := speechtotext.TranscriptionOptions{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   DefaultModel,
		BaseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.APIKey == "" {
		return nil, fmt.Errorf("openai transcription: %w", speechtotext.ErrMissingAPIKey)
	}
	options.BaseURL = strings.TrimRight(options.BaseURL, "/")

	return &Transcriber{
		options:    options,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}, nil
}

// Transcribe sends the segment as a WAV file and returns the trimmed text.
func (t *Transcriber) Transcribe(ctx context.Context, segment audio.Segment) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe segment")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", t.options.Model),
		attribute.Int("request.audio_bytes", segment.Len()),
	)

	if segment.Len() == 0 {
		return "", speechtotext.ErrEmptySegment
	}

	body, contentType, err := t.requestBody(segment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.options.BaseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+t.options.APIKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading response body: %w", err)
		span.RecordError(err)
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		logger.WarnContext(ctx, "transcription request failed", "status", resp.StatusCode, "body", string(respBody))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	transcript := strings.TrimSpace(string(respBody))
	span.SetAttributes(attribute.Int("response.transcript_length", len(transcript)))
	return transcript, nil
}

func (t *Transcriber) requestBody(segment audio.Segment) (io.Reader, string, error) {
	encoding := segment.Encoding
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	wav, err := audio.EncodeWAV(segment.Audio, encoding)
	if err != nil {
		return nil, "", fmt.Errorf("failed to wrap segment in wav: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %w", err)
	}

	fields := [][2]string{
		{"model", t.options.Model},
		{"response_format", "text"},
	}
	if t.options.Language != "" {
		fields = append(fields, [2]string{"language", t.options.Language})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", field[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	return &body, writer.FormDataContentType(), nil
}

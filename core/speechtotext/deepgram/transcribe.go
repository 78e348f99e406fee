// Package deepgram transcribes audio segments over Deepgram's live listen
// websocket, one connection per segment.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/jarvis-voice/core/audio"
	"github.com/koscakluka/jarvis-voice/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL = "wss://api.deepgram.com/v1/listen"
	DefaultModel   = "nova-3"
	defaultLang    = "en-US"

	// sendChunkSize is the largest audio frame written to the socket.
	sendChunkSize = 8192
)

type Transcriber struct {
	options speechtotext.TranscriptionOptions
	dialer  *websocket.Dialer
}

func NewTranscriber(opts ...speechtotext.TranscriptionOption) (*Transcriber, error) {
	options := speechtotext.TranscriptionOptions{
		APIKey:   os.Getenv("DEEPGRAM_API_KEY"),
		Model:    DefaultModel,
		Language: defaultLang,
		BaseURL:  defaultBaseURL,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.APIKey == "" {
		return nil, fmt.Errorf("deepgram transcription: %w", speechtotext.ErrMissingAPIKey)
	}

	return &Transcriber{options: options, dialer: websocket.DefaultDialer}, nil
}

// Transcribe streams the segment to Deepgram and joins every final result it
// sends back before closing the socket.
func (t *Transcriber) Transcribe(ctx context.Context, segment audio.Segment) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe segment")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", t.options.Model),
		attribute.Int("request.audio_bytes", segment.Len()),
	)

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if segment.Len() == 0 {
		return "", speechtotext.ErrEmptySegment
	}

	encodingInfo := segment.Encoding
	if encodingInfo.IsZero() {
		encodingInfo = audio.GetDefaultEncodingInfo()
	}
	encoding, err := convertEncoding(encodingInfo)
	if err != nil {
		return fail(fmt.Errorf("invalid encoding: %w", err))
	}

	conn, err := t.connect(ctx, encoding)
	if err != nil {
		return fail(err)
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { conn.Close() }) }
	defer closeConn()

	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	for start := 0; start < len(segment.Audio); start += sendChunkSize {
		end := min(start+sendChunkSize, len(segment.Audio))
		if err := conn.WriteMessage(websocket.BinaryMessage, segment.Audio[start:end]); err != nil {
			return fail(fmt.Errorf("failed to write to deepgram: %w", err))
		}
	}
	if err := conn.WriteJSON(controlMessage{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fail(fmt.Errorf("failed to close deepgram stream: %w", err))
	}

	var transcripts []string
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(fmt.Errorf("transcription interrupted: %w", ctxErr))
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, errStreamClosed) {
				break
			}
			return fail(fmt.Errorf("failed to read deepgram message: %w", err))
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		transcript, err := processMessage(msg)
		if errors.Is(err, errStreamClosed) {
			break
		} else if err != nil {
			logger.WarnContext(ctx, "Failed to process deepgram message", "error", err)
			continue
		}
		if transcript != "" {
			transcripts = append(transcripts, transcript)
		}
	}

	text := strings.Join(transcripts, " ")
	span.SetAttributes(attribute.Int("response.transcript_length", len(text)))
	return text, nil
}

func (t *Transcriber) connect(ctx context.Context, encoding listenEncoding) (*websocket.Conn, error) {
	listenURL, err := url.Parse(t.options.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Name)
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", strconv.Itoa(encoding.Channels))
	queryParams.Set("model", t.options.Model)
	queryParams.Set("smart_format", "true")
	if t.options.Language != "" {
		queryParams.Set("language", t.options.Language)
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := t.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + t.options.APIKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

var errStreamClosed = errors.New("deepgram stream closed")

type controlMessage struct {
	Type string `json:"type"`
}

// processMessage returns the transcript carried by a final result, if any.
func processMessage(msg []byte) (string, error) {
	var parsedMsg controlMessage
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		return "", fmt.Errorf("failed to unmarshal deepgram message: %w", err)
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal deepgram result: %w", err)
		}
		if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
			return "", nil
		}
		return strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript), nil

	case api.TypeCloseStreamResponse:
		return "", errStreamClosed

	case api.TypeErrorResponse:
		return "", fmt.Errorf("deepgram reported error: %s", msg)
	}

	return "", nil
}

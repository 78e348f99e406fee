// Package deepgram synthesizes speech over Deepgram's speak websocket, one
// connection per call.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/jarvis-voice/core/audio"
	"github.com/koscakluka/jarvis-voice/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL    = "wss://api.deepgram.com/v1/speak"
	defaultSampleRate = 24000
)

type Synthesizer struct {
	options texttospeech.TextToSpeechOptions
	dialer  *websocket.Dialer
}

func NewSynthesizer(opts ...texttospeech.TextToSpeechOption) (*Synthesizer, error) {
	options := texttospeech.TextToSpeechOptions{
		APIKey:       os.Getenv("DEEPGRAM_API_KEY"),
		Voice:        defaultVoice,
		BaseURL:      defaultBaseURL,
		EncodingInfo: audio.EncodingInfo{SampleRate: defaultSampleRate, Channels: 1, Format: audio.EncodingLinear16},
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.APIKey == "" {
		return nil, fmt.Errorf("deepgram synthesis: %w", texttospeech.ErrMissingAPIKey)
	}
	if !slices.Contains(availableVoices, options.Voice) {
		return nil, fmt.Errorf("invalid voice %q", options.Voice)
	}

	return &Synthesizer{options: options, dialer: websocket.DefaultDialer}, nil
}

func (s *Synthesizer) EncodingInfo() audio.EncodingInfo {
	return s.options.EncodingInfo
}

// Synthesize speaks text, flushes and yields audio frames until Deepgram
// confirms the flush.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		ctx, span := tracer.Start(ctx, "synthesize speech")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.voice", s.options.Voice),
			attribute.Int("request.text_length", len(text)),
		)

		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
		}

		conn, err := s.connect(ctx)
		if err != nil {
			fail(err)
			return
		}

		var closeOnce sync.Once
		closeConn := func() { closeOnce.Do(func() { conn.Close() }) }
		defer closeConn()
		stop := context.AfterFunc(ctx, closeConn)
		defer stop()

		defer func() {
			if err := conn.WriteJSON(closeMsg); err != nil {
				logger.DebugContext(ctx, "failed to send close message", "error", err)
			}
		}()

		if err := conn.WriteJSON(speakMessage{Type: "Speak", Text: text}); err != nil {
			fail(fmt.Errorf("failed to send text to deepgram: %w", err))
			return
		}
		if err := conn.WriteJSON(flushMsg); err != nil {
			fail(fmt.Errorf("failed to flush deepgram buffer: %w", err))
			return
		}

		total := 0
		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					fail(fmt.Errorf("synthesis interrupted: %w", ctxErr))
					return
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					break
				}
				fail(fmt.Errorf("failed to read deepgram message: %w", err))
				return
			}

			if msgType == websocket.BinaryMessage {
				total += len(msg)
				if !yield(msg, nil) {
					return
				}
				continue
			}

			done, err := processControlMessage(msg)
			if err != nil {
				fail(err)
				return
			}
			if done {
				break
			}
		}
		span.SetAttributes(attribute.Int("response.audio_bytes", total))
	}
}

func (s *Synthesizer) connect(ctx context.Context) (*websocket.Conn, error) {
	speakURL, err := url.Parse(s.options.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}
	urlValues := speakURL.Query()
	urlValues.Set("encoding", s.options.EncodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(s.options.EncodingInfo.SampleRate))
	urlValues.Set("model", s.options.Voice)
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	conn, _, err := s.dialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"Token " + s.options.APIKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

var errDeepgramWarning = errors.New("deepgram reported a problem")

// processControlMessage reports whether the flush finished.
func processControlMessage(msg []byte) (bool, error) {
	var parsedMsg struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		ErrMsg      string `json:"err_msg"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Debug("failed to unmarshal deepgram message", "error", err)
		return false, nil
	}

	switch parsedMsg.Type {
	case "Flushed":
		return true, nil
	case "Error":
		return false, fmt.Errorf("%w: %s%s", errDeepgramWarning, parsedMsg.Description, parsedMsg.ErrMsg)
	case "Warning":
		logger.Warn("deepgram warning", "description", parsedMsg.Description)
	}
	return false, nil
}

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

package transport

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/jarvis-voice/core/events"
)

type textFrame struct {
	Type events.Kind `json:"type"`
	Text string      `json:"text"`
}

type errorFrame struct {
	Type    events.Kind `json:"type"`
	Message string      `json:"message"`
}

// encodeEvent maps an event onto the websocket message it is sent as. ok is
// false for events that have no wire form.
func encodeEvent(event events.Event) (messageType int, payload []byte, ok bool, err error) {
	switch event := event.(type) {
	case events.TranscriptPartial:
		payload, err = json.Marshal(textFrame{Type: event.Kind(), Text: event.Text})
	case events.TranscriptFinal:
		payload, err = json.Marshal(textFrame{Type: event.Kind(), Text: event.Text})
	case events.AgentTextDelta:
		payload, err = json.Marshal(textFrame{Type: event.Kind(), Text: event.Text})
	case events.PipelineError:
		payload, err = json.Marshal(errorFrame{Type: events.KindPipelineError, Message: event.Message})
	case events.SynthesizedAudio:
		return websocket.BinaryMessage, event.Audio, true, nil
	default:
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("failed to encode %s frame: %w", event.Kind(), err)
	}
	return websocket.TextMessage, payload, true, nil
}

func encodeError(message string) []byte {
	payload, err := json.Marshal(errorFrame{Type: events.KindPipelineError, Message: message})
	if err != nil {
		return []byte(`{"type":"error","message":"internal error"}`)
	}
	return payload
}

// jarvis-talk streams the microphone to a voice server and plays back what
// it answers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/jarvis-voice/core/audio"
	"github.com/koscakluka/jarvis-voice/core/audio/miniaudio"
)

// captureQueueSize bounds how many microphone buffers wait for the socket.
const captureQueueSize = 64

type serverFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/voice", "voice websocket url")
	outputRate := flag.Int("output-rate", 24000, "sample rate of the audio the server speaks")
	debug := flag.Bool("debug", false, "log audio backend messages")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *url, *outputRate, *debug); err != nil {
		log.Printf("Failed to run talk client: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, url string, outputRate int, debug bool) error {
	opts := []miniaudio.ClientOption{
		miniaudio.WithCaptureEncoding(audio.GetDefaultEncodingInfo()),
		miniaudio.WithPlaybackEncoding(audio.EncodingInfo{SampleRate: outputRate, Channels: 1, Format: audio.EncodingLinear16}),
	}
	if debug {
		opts = append(opts, miniaudio.WithDebugLog())
	}
	device, err := miniaudio.NewClient(opts...)
	if err != nil {
		return err
	}
	defer device.Close()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	captured := make(chan []byte, captureQueueSize)
	if err := device.StartCapture(ctx, func(pcm []byte) {
		select {
		case captured <- append([]byte(nil), pcm...):
		default:
			// The audio callback must never block.
		}
	}); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer device.StopCapture()

	readErr := make(chan error, 1)
	go func() { readErr <- receive(conn, device) }()

	fmt.Println("Listening. Press Ctrl+C to stop.")
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			drainCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = device.Drain(drainCtx)
			return nil
		case err := <-readErr:
			return err
		case pcm := <-captured:
			if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				return fmt.Errorf("failed to send audio: %w", err)
			}
		}
	}
}

func receive(conn *websocket.Conn, device *miniaudio.Client) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		if messageType == websocket.BinaryMessage {
			if err := device.Play(data); err != nil {
				log.Printf("Failed to play audio: %v", err)
			}
			continue
		}

		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("Failed to decode server frame: %v", err)
			continue
		}
		switch frame.Type {
		case "transcript_partial":
			fmt.Printf("\r… %s", frame.Text)
		case "transcript_final":
			// The user spoke again, so whatever is still playing is stale.
			device.ClearPlayback()
			fmt.Printf("\rYou: %s\nJarvis: ", frame.Text)
		case "agent_delta":
			fmt.Print(frame.Text)
		case "error":
			fmt.Printf("\n[error] %s\n", frame.Message)
		}
	}
}

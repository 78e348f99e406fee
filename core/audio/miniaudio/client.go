// Package miniaudio gives the talk client access to the local microphone and
// speaker through malgo.
package miniaudio

import (
	"context"
	"fmt"
	"log"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/jarvis-voice/core/audio"
)

// Client owns one malgo context with a capture and a playback device.
type Client struct {
	// audioContext is only kept to uninitialize it on Close
	audioContext *malgo.AllocatedContext

	capture  captureDevice
	playback playbackDevice
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	captureEncoding  audio.EncodingInfo
	playbackEncoding audio.EncodingInfo
	debug            bool
}

// WithCaptureEncoding sets the format recorded from the microphone. Only
// linear16 is supported.
func WithCaptureEncoding(info audio.EncodingInfo) ClientOption {
	return func(o *clientOptions) { o.captureEncoding = info }
}

// WithPlaybackEncoding sets the format of audio handed to Play.
func WithPlaybackEncoding(info audio.EncodingInfo) ClientOption {
	return func(o *clientOptions) { o.playbackEncoding = info }
}

// WithDebugLog forwards malgo backend messages to the standard logger.
func WithDebugLog() ClientOption {
	return func(o *clientOptions) { o.debug = true }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	options := clientOptions{
		captureEncoding:  audio.GetDefaultEncodingInfo(),
		playbackEncoding: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	onLog := func(string) {}
	if options.debug {
		onLog = func(message string) { log.Println("malgo:", message) }
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, onLog)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.playback.Init(audioCtx, options.playbackEncoding); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := client.playback.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.capture.Init(audioCtx, options.captureEncoding); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return &client, nil
}

// StartCapture begins delivering microphone frames to onAudio. The slice
// passed to onAudio is only valid for the duration of the call.
func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.capture.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.capture.Stop()
}

// Play queues audio for the speaker.
func (c *Client) Play(audio []byte) error {
	return c.playback.Enqueue(audio)
}

// Drain blocks until all queued audio has been played or ctx ends.
func (c *Client) Drain(ctx context.Context) error {
	return c.playback.Drain(ctx)
}

func (c *Client) ClearPlayback() {
	c.playback.Clear()
}

func (c *Client) CaptureEncoding() audio.EncodingInfo {
	return c.capture.encoding
}

func (c *Client) PlaybackEncoding() audio.EncodingInfo {
	return c.playback.encoding
}

func (c *Client) Close() {
	_ = c.capture.Uninit()
	_ = c.playback.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func deviceFormat(info audio.EncodingInfo) (malgo.FormatType, error) {
	switch info.Format {
	case audio.EncodingLinear16:
		return malgo.FormatS16, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("%w: %q", audio.ErrUnsupportedFormat, info.Format.Name())
}

func deviceChannels(info audio.EncodingInfo) int {
	if info.Channels <= 0 {
		return 1
	}
	return info.Channels
}

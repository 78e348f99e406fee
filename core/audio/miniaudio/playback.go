package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/jarvis-voice/core/audio"
)

type playbackDevice struct {
	device   *malgo.Device
	encoding audio.EncodingInfo

	pending []byte
	drained chan struct{}

	mu      sync.Mutex
	audioMu sync.Mutex
}

func (p *playbackDevice) Init(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	format, err := deviceFormat(encoding)
	if err != nil {
		return err
	}
	channels := deviceChannels(encoding)
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(encoding.SampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(encoding.SampleRate / 10) // ~100ms
	config.Periods = 4

	p.encoding = encoding
	p.device, err = malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: p.fill(bytesPerFrame),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	return nil
}

func (p *playbackDevice) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := p.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (p *playbackDevice) Enqueue(audio []byte) error {
	p.mu.Lock()
	device := p.device
	p.mu.Unlock()
	if device == nil {
		return fmt.Errorf("device not initialized")
	} else if !device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	p.audioMu.Lock()
	defer p.audioMu.Unlock()
	p.pending = append(p.pending, audio...)
	return nil
}

func (p *playbackDevice) Clear() {
	p.audioMu.Lock()
	defer p.audioMu.Unlock()
	p.pending = nil
	p.signalDrainedLocked()
}

func (p *playbackDevice) Drain(ctx context.Context) error {
	p.audioMu.Lock()
	if len(p.pending) == 0 {
		p.audioMu.Unlock()
		return nil
	}
	if p.drained == nil {
		p.drained = make(chan struct{})
	}
	drained := p.drained
	p.audioMu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *playbackDevice) Uninit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil {
		return fmt.Errorf("device not initialized")
	}

	p.device.Uninit()
	p.device = nil
	p.Clear()
	return nil
}

func (p *playbackDevice) fill(bytesPerFrame int) malgo.DataProc {
	return func(output, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		p.audioMu.Lock()
		defer p.audioMu.Unlock()

		n := copy(output[:min(need, len(output))], p.pending)
		p.pending = p.pending[n:]
		if len(p.pending) == 0 {
			p.pending = nil
			p.signalDrainedLocked()
		}
	}
}

func (p *playbackDevice) signalDrainedLocked() {
	if p.drained != nil {
		close(p.drained)
		p.drained = nil
	}
}

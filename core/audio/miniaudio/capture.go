package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/jarvis-voice/core/audio"
)

type captureDevice struct {
	device   *malgo.Device
	encoding audio.EncodingInfo

	onAudio func(audio []byte)

	mu sync.Mutex
}

func (c *captureDevice) Init(audioContext *malgo.AllocatedContext, encoding audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format, err := deviceFormat(encoding)
	if err != nil {
		return err
	}
	channels := deviceChannels(encoding)
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(encoding.SampleRate)
	config.Capture.Format = format
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	// 20ms periods at 16kHz
	config.PeriodSizeInFrames = uint32(encoding.SampleRate / 50)
	config.Periods = 3

	c.encoding = encoding
	c.device, err = malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(input) < n || n == 0 {
				return
			}
			c.mu.Lock()
			onAudio := c.onAudio
			c.mu.Unlock()
			if onAudio != nil {
				onAudio(input[:n])
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

func (c *captureDevice) Start(onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	c.onAudio = onAudio
	if err := c.device.Start(); err != nil {
		c.onAudio = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	return nil
}

func (c *captureDevice) Stop() error {
	c.mu.Lock()
	device := c.device
	c.onAudio = nil
	c.mu.Unlock()

	if device == nil {
		return fmt.Errorf("device not initialized")
	} else if !device.IsStarted() {
		return nil
	}

	// Stop waits for the data callback, so it must not hold mu.
	if err := device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (c *captureDevice) Uninit() error {
	c.mu.Lock()
	device := c.device
	c.device = nil
	c.onAudio = nil
	c.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	return nil
}

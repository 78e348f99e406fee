package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultFormat     = "linear16"

	// DefaultSegmentWindow is the amount of audio gathered before a segment is
	// handed to transcription.
	DefaultSegmentWindow = 3 * time.Second
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		Format:     EncodingLinear16,
	}
}

// EncodingInfo describes raw PCM audio flowing through the pipeline.
type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     EncodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) channels() int {
	if e.Channels <= 0 {
		return 1
	}
	return e.Channels
}

// BytesPerSecond returns sampleRate × bytesPerSample × channels, or 0 for an
// unknown format.
func (e EncodingInfo) BytesPerSecond() int {
	size := e.Format.ByteSize()
	if size <= 0 || e.SampleRate <= 0 {
		return 0
	}
	return e.SampleRate * size * e.channels()
}

// BytesFor returns the number of bytes holding d of audio. The result is
// rounded down to a whole frame.
func (e EncodingInfo) BytesFor(d time.Duration) int {
	perSecond := e.BytesPerSecond()
	if perSecond == 0 || d <= 0 {
		return 0
	}
	frame := e.Format.ByteSize() * e.channels()
	n := int(int64(perSecond) * int64(d) / int64(time.Second))
	return n - n%frame
}

// Duration returns how long n bytes of audio play for.
func (e EncodingInfo) Duration(n int) time.Duration {
	perSecond := e.BytesPerSecond()
	if perSecond == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(perSecond))
}

type EncodingFormat string

func (e EncodingFormat) Name() string {
	return string(e)
}

func (e EncodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    EncodingFormat = "mulaw"
	EncodingALaw     EncodingFormat = "alaw"
	EncodingLinear16 EncodingFormat = "linear16"
)

// ParseFormat maps a configured format name onto a known encoding.
func ParseFormat(name string) (EncodingFormat, bool) {
	switch format := EncodingFormat(name); format {
	case EncodingMulaw, EncodingALaw, EncodingLinear16:
		return format, true
	}
	return "", false
}

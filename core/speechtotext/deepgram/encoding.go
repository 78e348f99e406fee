package deepgram

import (
	"fmt"

	"github.com/koscakluka/jarvis-voice/core/audio"
)

// listenEncoding is the encoding and sample rate as Deepgram names them.
type listenEncoding struct {
	SampleRate int
	Name       string
	Channels   int
}

func convertEncoding(encoding audio.EncodingInfo) (listenEncoding, error) {
	converted := listenEncoding{Channels: max(encoding.Channels, 1)}
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 44100, 48000:
		converted.SampleRate = encoding.SampleRate
	default:
		return listenEncoding{}, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		converted.Name = "linear16"
	case audio.EncodingALaw, audio.EncodingMulaw:
		if converted.SampleRate != 8000 {
			return listenEncoding{}, fmt.Errorf("unsupported sample rate for %s encoding", encoding.Format.Name())
		}
		converted.Name = encoding.Format.Name()
	default:
		return listenEncoding{}, fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}

	return converted, nil
}

package events

// KindSynthesizedAudio identifies a chunk of synthesized speech.
const KindSynthesizedAudio Kind = "synthesized_audio"

// SynthesizedAudio carries a chunk of synthesized speech audio.
type SynthesizedAudio struct {
	Base
	Audio []byte
}

// NewSynthesizedAudio creates a synthesized audio event.
func NewSynthesizedAudio(audio []byte) SynthesizedAudio {
	return SynthesizedAudio{Base: NewBase(KindSynthesizedAudio), Audio: audio}
}

package audio

import "time"

// Segment is one window of accumulated audio submitted for transcription as
// a whole.
type Segment struct {
	Audio    []byte
	Encoding EncodingInfo
}

func (s Segment) Len() int {
	return len(s.Audio)
}

func (s Segment) Duration() time.Duration {
	return s.Encoding.Duration(len(s.Audio))
}

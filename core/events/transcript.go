package events

const (
	// KindTranscriptPartial identifies a provisional transcription.
	KindTranscriptPartial Kind = "transcript_partial"
	// KindTranscriptFinal identifies a complete user utterance.
	KindTranscriptFinal Kind = "transcript_final"
)

// TranscriptPartial carries a provisional transcription of buffered audio.
type TranscriptPartial struct {
	Base
	Text string
}

// NewTranscriptPartial creates a partial transcript event.
func NewTranscriptPartial(text string) TranscriptPartial {
	return TranscriptPartial{Base: NewBase(KindTranscriptPartial), Text: text}
}

// TranscriptFinal carries the transcription of a complete user utterance.
type TranscriptFinal struct {
	Base
	Text string
}

// NewTranscriptFinal creates a final transcript event.
func NewTranscriptFinal(text string) TranscriptFinal {
	return TranscriptFinal{Base: NewBase(KindTranscriptFinal), Text: text}
}

package audio

import (
	"testing"
	"time"
)

func TestDefaultSegmentThreshold(t *testing.T) {
	info := GetDefaultEncodingInfo()

	if got := info.BytesPerSecond(); got != 32000 {
		t.Fatalf("expected 32000 bytes per second, got %d", got)
	}
	if got := info.BytesFor(DefaultSegmentWindow); got != 96000 {
		t.Fatalf("expected 96000 byte threshold, got %d", got)
	}
}

func TestBytesForRoundsToWholeFrames(t *testing.T) {
	info := EncodingInfo{SampleRate: 16000, Channels: 2, Format: EncodingLinear16}

	got := info.BytesFor(time.Millisecond + time.Microsecond)
	if got%4 != 0 {
		t.Fatalf("expected a multiple of the 4 byte frame, got %d", got)
	}
	if got != 64 {
		t.Fatalf("expected 64 bytes, got %d", got)
	}
}

func TestUnknownFormatHasNoThreshold(t *testing.T) {
	info := EncodingInfo{SampleRate: 16000, Format: EncodingFormat("opus")}
	if got := info.BytesFor(time.Second); got != 0 {
		t.Fatalf("expected 0 for unknown format, got %d", got)
	}
}

func TestSegmentDuration(t *testing.T) {
	segment := Segment{Audio: make([]byte, 112000), Encoding: GetDefaultEncodingInfo()}
	if got := segment.Duration(); got != 3500*time.Millisecond {
		t.Fatalf("expected 3.5s, got %v", got)
	}
}

func TestParseFormat(t *testing.T) {
	if format, ok := ParseFormat("mulaw"); !ok || format != EncodingMulaw {
		t.Fatalf("expected mulaw, got %q (%v)", format, ok)
	}
	if _, ok := ParseFormat("flac"); ok {
		t.Fatalf("expected flac to be rejected")
	}
}

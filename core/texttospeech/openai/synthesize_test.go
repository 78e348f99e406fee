package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/jarvis-voice/core/texttospeech"
)

func TestSynthesizeStreamsPCM(t *testing.T) {
	pcm := bytes.Repeat([]byte{9, 1}, texttospeech.DefaultChunkSize)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("expected /audio/speech, got %s", r.URL.Path)
		}
		var body speechRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if body.Model != DefaultModel || body.Voice != DefaultVoice || body.ResponseFormat != "pcm" || body.Input != "Hello world." {
			t.Errorf("unexpected request: %+v", body)
		}
		_, _ = w.Write(pcm)
	}))
	defer server.Close()

	synthesizer, err := NewSynthesizer(texttospeech.WithAPIKey("key"), texttospeech.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewSynthesizer returned error: %v", err)
	}

	var got []byte
	chunks := 0
	for chunk, err := range synthesizer.Synthesize(context.Background(), "Hello world.") {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		chunks++
		got = append(got, chunk...)
	}

	if !bytes.Equal(got, pcm) {
		t.Fatalf("expected %d bytes of audio, got %d", len(pcm), len(got))
	}
	if chunks != 2 {
		t.Fatalf("expected 2 chunks, got %d", chunks)
	}
	if synthesizer.EncodingInfo().SampleRate != OutputSampleRate {
		t.Fatalf("expected %d Hz output, got %d", OutputSampleRate, synthesizer.EncodingInfo().SampleRate)
	}
}

func TestSynthesizeClassifiesRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	synthesizer, err := NewSynthesizer(texttospeech.WithAPIKey("key"), texttospeech.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewSynthesizer returned error: %v", err)
	}

	var gotErr error
	for _, err := range synthesizer.Synthesize(context.Background(), "Hi.") {
		gotErr = err
	}
	if !errors.Is(gotErr, texttospeech.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", gotErr)
	}
}

func TestNewSynthesizerRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewSynthesizer(); !errors.Is(err, texttospeech.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

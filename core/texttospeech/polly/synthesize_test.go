package polly

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/koscakluka/jarvis-voice/core/texttospeech"
)

type fakePollyClient struct {
	audio []byte
	err   error
	input *polly.SynthesizeSpeechInput
}

func (f *fakePollyClient) SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(bytes.NewReader(f.audio))}, nil
}

type fakeAPIError struct {
	code string
	msg  string
}

func (e fakeAPIError) Error() string                 { return e.code + ": " + e.msg }
func (e fakeAPIError) ErrorCode() string             { return e.code }
func (e fakeAPIError) ErrorMessage() string          { return e.msg }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var _ smithy.APIError = fakeAPIError{}

func TestSynthesizeStreamsPCM(t *testing.T) {
	client := &fakePollyClient{audio: bytes.Repeat([]byte{7}, texttospeech.DefaultChunkSize+10)}
	synthesizer, err := NewSynthesizerWithClient(Config{}, client)
	if err != nil {
		t.Fatalf("NewSynthesizerWithClient returned error: %v", err)
	}

	var total, chunks int
	for chunk, err := range synthesizer.Synthesize(context.Background(), "Good morning.") {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		total += len(chunk)
		chunks++
	}

	if chunks != 2 || total != texttospeech.DefaultChunkSize+10 {
		t.Fatalf("expected 2 chunks with all audio, got %d chunks and %d bytes", chunks, total)
	}
	if client.input.OutputFormat != pollytypes.OutputFormatPcm || *client.input.SampleRate != "16000" {
		t.Fatalf("expected 16 kHz pcm request, got %v at %v", client.input.OutputFormat, *client.input.SampleRate)
	}
	if client.input.VoiceId != pollytypes.VoiceId(DefaultVoice) || client.input.Engine != pollytypes.EngineNeural {
		t.Fatalf("unexpected voice or engine: %v %v", client.input.VoiceId, client.input.Engine)
	}
	if synthesizer.EncodingInfo().SampleRate != 16000 {
		t.Fatalf("expected 16000 sample rate, got %d", synthesizer.EncodingInfo().SampleRate)
	}
}

func TestSynthesizeClassifiesAPIErrors(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "overload", err: fakeAPIError{code: "TooManyRequestsException", msg: "rate"}, expected: texttospeech.ErrRateLimited},
		{name: "rejected", err: fakeAPIError{code: "TextLengthExceededException", msg: "too long"}, expected: texttospeech.ErrRejected},
		{name: "server", err: fakeAPIError{code: "ServiceFailureException", msg: "boom"}, expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			synthesizer, err := NewSynthesizerWithClient(Config{}, &fakePollyClient{err: tc.err})
			if err != nil {
				t.Fatalf("NewSynthesizerWithClient returned error: %v", err)
			}

			var gotErr error
			for _, err := range synthesizer.Synthesize(context.Background(), "Hi.") {
				gotErr = err
			}
			if gotErr == nil {
				t.Fatalf("expected error")
			}
			if tc.expected != nil && !errors.Is(gotErr, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, gotErr)
			}
			if tc.expected == nil && (errors.Is(gotErr, texttospeech.ErrRateLimited) || errors.Is(gotErr, texttospeech.ErrRejected)) {
				t.Fatalf("expected unclassified error, got %v", gotErr)
			}
		})
	}
}

func TestNewSynthesizerRejectsUnknownEngine(t *testing.T) {
	if _, err := NewSynthesizerWithClient(Config{Engine: "generative-ish"}, &fakePollyClient{}); err == nil {
		t.Fatalf("expected engine error")
	}
}

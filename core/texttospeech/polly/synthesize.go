// Package polly synthesizes speech with Amazon Polly.
package polly

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/koscakluka/jarvis-voice/core/audio"
	"github.com/koscakluka/jarvis-voice/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultRegion = "us-east-1"
	DefaultVoice  = "Joanna"
	DefaultEngine = "neural"

	// Polly only produces PCM at 8 or 16 kHz.
	outputSampleRate = 16000
)

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

type Config struct {
	Region string
	// Engine is "neural" or "standard".
	Engine string
}

type Synthesizer struct {
	cfg     Config
	options texttospeech.TextToSpeechOptions

	mu     sync.Mutex
	client synthClient
}

// NewSynthesizer creates a Polly synthesizer. The AWS client is built from
// the default credential chain on first use.
func NewSynthesizer(cfg Config, opts ...texttospeech.TextToSpeechOption) (*Synthesizer, error) {
	return NewSynthesizerWithClient(cfg, nil, opts...)
}

func NewSynthesizerWithClient(cfg Config, client synthClient, opts ...texttospeech.TextToSpeechOption) (*Synthesizer, error) {
	cfg.Region = defaultString(cfg.Region, DefaultRegion)
	cfg.Engine = defaultString(cfg.Engine, DefaultEngine)
	if !strings.EqualFold(cfg.Engine, "neural") && !strings.EqualFold(cfg.Engine, "standard") {
		return nil, fmt.Errorf("unknown polly engine %q", cfg.Engine)
	}

	options := texttospeech.TextToSpeechOptions{Voice: DefaultVoice}
	for _, opt := range opts {
		opt(&options)
	}
	options.Voice = defaultString(options.Voice, DefaultVoice)
	options.EncodingInfo = audio.EncodingInfo{SampleRate: outputSampleRate, Channels: 1, Format: audio.EncodingLinear16}

	return &Synthesizer{cfg: cfg, options: options, client: client}, nil
}

func (s *Synthesizer) EncodingInfo() audio.EncodingInfo {
	return s.options.EncodingInfo
}

// Warm resolves the AWS client so credential problems show up at startup.
func (s *Synthesizer) Warm(ctx context.Context) error {
	_, err := s.resolveClient(ctx)
	return err
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		ctx, span := tracer.Start(ctx, "synthesize speech")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.voice", s.options.Voice),
			attribute.String("request.engine", s.cfg.Engine),
			attribute.Int("request.text_length", len(text)),
		)

		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(nil, err)
		}

		client, err := s.resolveClient(ctx)
		if err != nil {
			fail(err)
			return
		}

		engine := pollytypes.EngineStandard
		if strings.EqualFold(s.cfg.Engine, "neural") {
			engine = pollytypes.EngineNeural
		}

		output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
			Engine:       engine,
			OutputFormat: pollytypes.OutputFormatPcm,
			SampleRate:   aws.String(strconv.Itoa(outputSampleRate)),
			Text:         aws.String(text),
			TextType:     pollytypes.TextTypeText,
			VoiceId:      pollytypes.VoiceId(s.options.Voice),
		})
		if err != nil {
			fail(classifyError(err))
			return
		}
		if output == nil || output.AudioStream == nil {
			fail(errors.New("polly returned no audio"))
			return
		}
		defer output.AudioStream.Close()

		total := 0
		for chunk, err := range texttospeech.ReadChunks(output.AudioStream, texttospeech.DefaultChunkSize) {
			if err != nil {
				fail(fmt.Errorf("error reading polly audio: %w", err))
				return
			}
			total += len(chunk)
			if !yield(chunk, nil) {
				break
			}
		}
		span.SetAttributes(attribute.Int("response.audio_bytes", total))
	}
}

func classifyError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("polly request failed: %w", err)
	}

	switch apiErr.ErrorCode() {
	case "TooManyRequestsException", "ThrottlingException":
		return fmt.Errorf("%w: %s", texttospeech.ErrRateLimited, apiErr.ErrorMessage())
	case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException",
		"MarksNotSupportedForFormatException", "InvalidSampleRateException", "EngineNotSupportedException":
		return fmt.Errorf("%w: %s", texttospeech.ErrRejected, apiErr.ErrorMessage())
	}
	return fmt.Errorf("polly %s: %w", apiErr.ErrorCode(), err)
}

func (s *Synthesizer) resolveClient(ctx context.Context) (synthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	logger.DebugContext(ctx, "created polly client", "region", s.cfg.Region)
	s.client = polly.NewFromConfig(awsCfg)
	return s.client, nil
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

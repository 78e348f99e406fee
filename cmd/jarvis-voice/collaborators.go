package main

import (
	"context"
	"fmt"
	"iter"

	pipeline "github.com/koscakluka/jarvis-voice/core"
	"github.com/koscakluka/jarvis-voice/core/advisor"
	"github.com/koscakluka/jarvis-voice/core/agent"
	"github.com/koscakluka/jarvis-voice/core/audio"
	"github.com/koscakluka/jarvis-voice/core/llms"
	"github.com/koscakluka/jarvis-voice/core/llms/groq"
	"github.com/koscakluka/jarvis-voice/core/llms/openai"
	"github.com/koscakluka/jarvis-voice/core/speechtotext"
	deepgramstt "github.com/koscakluka/jarvis-voice/core/speechtotext/deepgram"
	"github.com/koscakluka/jarvis-voice/core/speechtotext/whisper"
	"github.com/koscakluka/jarvis-voice/core/texttospeech"
	deepgramtts "github.com/koscakluka/jarvis-voice/core/texttospeech/deepgram"
	openaitts "github.com/koscakluka/jarvis-voice/core/texttospeech/openai"
	"github.com/koscakluka/jarvis-voice/core/texttospeech/polly"
	"github.com/koscakluka/jarvis-voice/internal/config"
)

func newTranscriber(cfg config.TranscriptionConfig) (pipeline.Transcriber, error) {
	opts := []speechtotext.TranscriptionOption{speechtotext.WithAPIKey(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, speechtotext.WithModel(cfg.Model))
	}
	if cfg.Language != "" {
		opts = append(opts, speechtotext.WithLanguage(cfg.Language))
	}

	switch cfg.Provider {
	case config.ProviderWhisper:
		return whisper.NewTranscriber(opts...)
	case config.ProviderDeepgram:
		return deepgramstt.NewTranscriber(opts...)
	}
	return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
}

func newAgent(cfg config.AgentConfig, store *advisor.Store) (*agent.Agent, error) {
	var llm llms.StreamingLLM
	switch cfg.Provider {
	case config.ProviderOpenAI:
		opts := []openai.ClientOption{openai.WithAPIKey(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		llm = openai.NewClient(opts...)
	case config.ProviderGroq:
		opts := []groq.ClientOption{groq.WithAPIKey(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, groq.WithModel(cfg.Model))
		}
		llm = groq.NewClient(opts...)
	default:
		return nil, fmt.Errorf("unknown agent provider %q", cfg.Provider)
	}

	opts := []agent.AgentOption{
		agent.WithNotificationSink(store),
		agent.WithDraftEmailSink(store),
		agent.WithMaxToolRounds(cfg.MaxToolRounds),
	}
	if cfg.Instructions != "" {
		opts = append(opts, agent.WithInstructions(cfg.Instructions))
	}
	return agent.New(llm, opts...)
}

type synthesizer interface {
	Synthesize(ctx context.Context, text string) iter.Seq2[[]byte, error]
	EncodingInfo() audio.EncodingInfo
}

func newSynthesizer(cfg config.SynthesisConfig) (synthesizer, error) {
	var opts []texttospeech.TextToSpeechOption
	if cfg.APIKey != "" {
		opts = append(opts, texttospeech.WithAPIKey(cfg.APIKey))
	}
	if cfg.Model != "" {
		opts = append(opts, texttospeech.WithModel(cfg.Model))
	}
	if cfg.Voice != "" {
		opts = append(opts, texttospeech.WithVoice(cfg.Voice))
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openaitts.NewSynthesizer(opts...)
	case config.ProviderDeepgram:
		return deepgramtts.NewSynthesizer(opts...)
	case config.ProviderPolly:
		return polly.NewSynthesizer(polly.Config{Region: cfg.Region, Engine: cfg.Engine}, opts...)
	}
	return nil, fmt.Errorf("unknown synthesis provider %q", cfg.Provider)
}

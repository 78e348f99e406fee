// Package config loads the server configuration from an optional YAML file
// and the environment.
package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/koscakluka/jarvis-voice/core/audio"
)

const (
	DefaultAddress        = ":8080"
	DefaultReadLimitBytes = 1 << 20
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"

	ProviderOpenAI   = "openai"
	ProviderGroq     = "groq"
	ProviderWhisper  = "whisper"
	ProviderDeepgram = "deepgram"
	ProviderPolly    = "polly"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Audio         AudioConfig         `yaml:"audio"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Agent         AgentConfig         `yaml:"agent"`
	Synthesis     SynthesisConfig     `yaml:"synthesis"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
	// ReadLimitBytes caps a single inbound websocket frame.
	ReadLimitBytes int `yaml:"read_limit_bytes"`
}

type AudioConfig struct {
	SampleRate     int     `yaml:"sample_rate"`
	Channels       int     `yaml:"channels"`
	Format         string  `yaml:"format"`
	SegmentSeconds float64 `yaml:"segment_seconds"`
	// PartialSeconds enables partial transcripts when above zero.
	PartialSeconds float64 `yaml:"partial_seconds"`
}

type PipelineConfig struct {
	CallTimeoutSeconds float64 `yaml:"call_timeout_seconds"`
	SurfaceErrors      bool    `yaml:"surface_errors"`
}

type TranscriptionConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	APIKey   string `yaml:"api_key"`
}

type AgentConfig struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	Instructions  string `yaml:"instructions"`
	MaxToolRounds int    `yaml:"max_tool_rounds"`
	// SinkCapacity is how many notifications and drafts are kept.
	SinkCapacity int    `yaml:"sink_capacity"`
	APIKey       string `yaml:"api_key"`
}

type SynthesisConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
	APIKey   string `yaml:"api_key"`
	// Region and Engine only apply to polly.
	Region string `yaml:"region"`
	Engine string `yaml:"engine"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration that works with nothing but API keys set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:        DefaultAddress,
			ReadLimitBytes: DefaultReadLimitBytes,
		},
		Audio: AudioConfig{
			SampleRate:     audio.DefaultSampleRate,
			Channels:       audio.DefaultChannels,
			Format:         audio.DefaultFormat,
			SegmentSeconds: audio.DefaultSegmentWindow.Seconds(),
		},
		Transcription: TranscriptionConfig{Provider: ProviderWhisper},
		Agent: AgentConfig{
			Provider:      ProviderOpenAI,
			MaxToolRounds: 4,
			SinkCapacity:  100,
		},
		Synthesis: SynthesisConfig{Provider: ProviderOpenAI},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}
	if err := c.Synthesis.Validate(); err != nil {
		return fmt.Errorf("synthesis config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if s.ReadLimitBytes < 1024 {
		return fmt.Errorf("read_limit_bytes must be at least 1024, got %d", s.ReadLimitBytes)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000, got %d", a.SampleRate)
	}
	if a.Channels < 1 || a.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}
	if _, ok := audio.ParseFormat(a.Format); !ok {
		return fmt.Errorf("unknown audio format %q", a.Format)
	}
	if a.SegmentSeconds <= 0 {
		return fmt.Errorf("segment_seconds must be positive, got %v", a.SegmentSeconds)
	}
	if a.PartialSeconds < 0 || (a.PartialSeconds > 0 && a.PartialSeconds >= a.SegmentSeconds) {
		return fmt.Errorf("partial_seconds must be between 0 and segment_seconds, got %v", a.PartialSeconds)
	}
	return nil
}

func (p *PipelineConfig) Validate() error {
	if p.CallTimeoutSeconds < 0 {
		return fmt.Errorf("call_timeout_seconds cannot be negative, got %v", p.CallTimeoutSeconds)
	}
	return nil
}

func (t *TranscriptionConfig) Validate() error {
	if !slices.Contains([]string{ProviderWhisper, ProviderDeepgram}, t.Provider) {
		return fmt.Errorf("unknown provider %q", t.Provider)
	}
	if t.APIKey == "" {
		return fmt.Errorf("api key for %s is not set", t.Provider)
	}
	return nil
}

func (a *AgentConfig) Validate() error {
	if !slices.Contains([]string{ProviderOpenAI, ProviderGroq}, a.Provider) {
		return fmt.Errorf("unknown provider %q", a.Provider)
	}
	if a.APIKey == "" {
		return fmt.Errorf("api key for %s is not set", a.Provider)
	}
	if a.MaxToolRounds < 0 {
		return fmt.Errorf("max_tool_rounds cannot be negative, got %d", a.MaxToolRounds)
	}
	if a.SinkCapacity < 1 {
		return fmt.Errorf("sink_capacity must be at least 1, got %d", a.SinkCapacity)
	}
	return nil
}

func (s *SynthesisConfig) Validate() error {
	if !slices.Contains([]string{ProviderOpenAI, ProviderDeepgram, ProviderPolly}, s.Provider) {
		return fmt.Errorf("unknown provider %q", s.Provider)
	}
	// Polly authenticates through the AWS credential chain.
	if s.Provider != ProviderPolly && s.APIKey == "" {
		return fmt.Errorf("api key for %s is not set", s.Provider)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	if _, err := l.SlogLevel(); err != nil {
		return err
	}
	if l.Format != "text" && l.Format != "json" {
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}
	return nil
}

func (l *LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", l.Level)
	}
	return level, nil
}

func (a *AudioConfig) EncodingInfo() audio.EncodingInfo {
	format, _ := audio.ParseFormat(a.Format)
	return audio.EncodingInfo{SampleRate: a.SampleRate, Channels: a.Channels, Format: format}
}

func (a *AudioConfig) SegmentWindow() time.Duration {
	return seconds(a.SegmentSeconds)
}

func (a *AudioConfig) PartialWindow() time.Duration {
	return seconds(a.PartialSeconds)
}

func (p *PipelineConfig) CallTimeout() time.Duration {
	return seconds(p.CallTimeoutSeconds)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

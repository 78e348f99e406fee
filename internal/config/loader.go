package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads the YAML file, then applies environment overrides. Tests can
// override Lookup and ReadFile.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load builds the configuration. An empty path skips the file.
func (l Loader) Load(path string) (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	cfg := Default()
	if path != "" {
		data, err := l.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := l.applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	l.applyKeys(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l Loader) applyEnv(cfg *Config) error {
	overrideString(l.Lookup, "JARVIS_ADDRESS", &cfg.Server.Address)
	overrideString(l.Lookup, "JARVIS_LOG_LEVEL", &cfg.Logging.Level)
	overrideString(l.Lookup, "JARVIS_LOG_FORMAT", &cfg.Logging.Format)
	overrideString(l.Lookup, "JARVIS_TRANSCRIPTION_PROVIDER", &cfg.Transcription.Provider)
	overrideString(l.Lookup, "JARVIS_AGENT_PROVIDER", &cfg.Agent.Provider)
	overrideString(l.Lookup, "JARVIS_AGENT_MODEL", &cfg.Agent.Model)
	overrideString(l.Lookup, "JARVIS_SYNTHESIS_PROVIDER", &cfg.Synthesis.Provider)
	overrideString(l.Lookup, "JARVIS_SYNTHESIS_VOICE", &cfg.Synthesis.Voice)
	overrideString(l.Lookup, "AWS_REGION", &cfg.Synthesis.Region)

	if err := overrideFloat(l.Lookup, "JARVIS_SEGMENT_SECONDS", &cfg.Audio.SegmentSeconds); err != nil {
		return err
	}
	if err := overrideFloat(l.Lookup, "JARVIS_PARTIAL_SECONDS", &cfg.Audio.PartialSeconds); err != nil {
		return err
	}
	if err := overrideFloat(l.Lookup, "JARVIS_CALL_TIMEOUT_SECONDS", &cfg.Pipeline.CallTimeoutSeconds); err != nil {
		return err
	}
	if raw, ok := l.Lookup("JARVIS_SURFACE_ERRORS"); ok && strings.TrimSpace(raw) != "" {
		value, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("config: parse JARVIS_SURFACE_ERRORS: %w", err)
		}
		cfg.Pipeline.SurfaceErrors = value
	}
	return nil
}

var providerKeys = map[string]string{
	ProviderOpenAI:   "OPENAI_API_KEY",
	ProviderWhisper:  "OPENAI_API_KEY",
	ProviderGroq:     "GROQ_API_KEY",
	ProviderDeepgram: "DEEPGRAM_API_KEY",
}

// applyKeys fills API keys not set in the file from the provider's usual
// environment variable.
func (l Loader) applyKeys(cfg *Config) {
	for _, target := range []struct {
		provider string
		key      *string
	}{
		{cfg.Transcription.Provider, &cfg.Transcription.APIKey},
		{cfg.Agent.Provider, &cfg.Agent.APIKey},
		{cfg.Synthesis.Provider, &cfg.Synthesis.APIKey},
	} {
		if *target.key != "" {
			continue
		}
		if name, ok := providerKeys[target.provider]; ok {
			overrideString(l.Lookup, name, target.key)
		}
	}
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}

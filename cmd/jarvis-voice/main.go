package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	pipeline "github.com/koscakluka/jarvis-voice/core"
	"github.com/koscakluka/jarvis-voice/core/advisor"
	"github.com/koscakluka/jarvis-voice/core/transport"
	"github.com/koscakluka/jarvis-voice/internal/config"
	"github.com/koscakluka/jarvis-voice/internal/metrics"
	"github.com/koscakluka/jarvis-voice/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Loader{}.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("starting voice server",
		"address", cfg.Server.Address,
		"transcription", cfg.Transcription.Provider,
		"agent", cfg.Agent.Provider,
		"synthesis", cfg.Synthesis.Provider,
	)

	store := advisor.NewStore(advisor.WithCapacity(cfg.Agent.SinkCapacity))

	transcriber, err := newTranscriber(cfg.Transcription)
	if err != nil {
		logger.Error("failed to create transcriber", "error", err)
		os.Exit(1)
	}
	agent, err := newAgent(cfg.Agent, store)
	if err != nil {
		logger.Error("failed to create agent", "error", err)
		os.Exit(1)
	}
	synthesizer, err := newSynthesizer(cfg.Synthesis)
	if err != nil {
		logger.Error("failed to create synthesizer", "error", err)
		os.Exit(1)
	}
	logger.Info("synthesized audio format",
		"sample_rate", synthesizer.EncodingInfo().SampleRate,
		"format", synthesizer.EncodingInfo().Format.Name(),
	)

	opts := []pipeline.PipelineOption{
		pipeline.WithTranscriber(transcriber),
		pipeline.WithAgent(agent),
		pipeline.WithSynthesizer(synthesizer),
		pipeline.WithEncodingInfo(cfg.Audio.EncodingInfo()),
		pipeline.WithSegmentWindow(cfg.Audio.SegmentWindow()),
		pipeline.WithPartialWindow(cfg.Audio.PartialWindow()),
		pipeline.WithCallTimeout(cfg.Pipeline.CallTimeout()),
	}
	if cfg.Pipeline.SurfaceErrors {
		opts = append(opts, pipeline.WithSurfacedErrors())
	}
	p, err := pipeline.New(opts...)
	if err != nil {
		logger.Error("failed to create pipeline", "error", err)
		os.Exit(1)
	}
	if err := p.Warm(ctx); err != nil {
		logger.Error("failed to warm pipeline", "error", err)
		os.Exit(1)
	}

	m := metrics.NewMetrics()
	srv := server.New(
		transport.New(p, transport.WithObserver(m)),
		server.WithAdvisorStore(store),
		server.WithMetrics(m),
		server.WithReadLimit(int64(cfg.Server.ReadLimitBytes)),
	)

	go func() {
		<-ctx.Done()
		logger.Info("shutdown requested, stopping server")
		if err := srv.Shutdown(); err != nil {
			logger.Warn("server shutdown failed", "error", err)
		}
	}()

	if err := srv.Listen(cfg.Server.Address); err != nil {
		logger.Error("server terminated with error", "error", err)
		os.Exit(1)
	}
	logger.Info("voice server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level, _ := cfg.SlogLevel()
	options := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

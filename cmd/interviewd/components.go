package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/VISHAAL-1/ai-interview-platform/internal/acoustic"
	"github.com/VISHAAL-1/ai-interview-platform/internal/audio"
	"github.com/VISHAAL-1/ai-interview-platform/internal/health"
	"github.com/VISHAAL-1/ai-interview-platform/internal/judge"
	"github.com/VISHAAL-1/ai-interview-platform/internal/pipeline"
	"github.com/VISHAAL-1/ai-interview-platform/internal/speech"
	"github.com/VISHAAL-1/ai-interview-platform/internal/store"
	"github.com/VISHAAL-1/ai-interview-platform/internal/trace"
)

// components are the long-lived collaborators shared by every run.
type components struct {
	pipeline *pipeline.Pipeline
	store    *store.Store // nil without DATABASE_URL
	tracer   *trace.Tracer
}

func (c *components) Close() {
	c.tracer.Close()
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			slog.Warn("store close", "error", err)
		}
	}
}

func buildComponents(ctx context.Context, cfg config, b pipeline.Broadcaster) (*components, error) {
	c := &components{}

	var sink pipeline.ResultSink = store.NewLogSink()
	if cfg.databaseURL != "" {
		st, err := store.Open(ctx, cfg.databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		c.store = st
		c.tracer = trace.NewTracer(st)
		sink = st
		slog.Info("persistence enabled")
	} else {
		slog.Warn("DATABASE_URL not set, evaluations are logged only")
	}

	var features acoustic.Extractor
	if cfg.opensmilePath != "" {
		features = acoustic.NewOpenSMILE(cfg.opensmilePath, cfg.opensmileConfig, cfg.audioTmpDir)
	} else {
		slog.Warn("OPENSMILE_PATH not set, acoustic analysis disabled")
	}

	if cfg.geminiAPIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, judge requests will fail")
	}
	completer := judge.NewOpenAICompleter(judge.OpenAIConfig{
		APIKey:        cfg.geminiAPIKey,
		BaseURL:       cfg.judgeBaseURL,
		Model:         cfg.judgeModel,
		Temperature:   cfg.judgeTemperature,
		RatePerMinute: cfg.judgeRatePerMin,
		PoolSize:      cfg.judgePoolSize,
	})

	c.pipeline = pipeline.New(pipeline.Config{
		Transcoder:  audio.NewFFmpeg(cfg.ffmpegPath),
		Transcriber: speech.NewGoogle(cfg.googleCredentials, cfg.sttLanguage, nil),
		Features:    features,
		Judge:       judge.New(completer),
		Sink:        sink,
		Broadcaster: b,
		Tracer:      c.tracer,
		TempDir:     cfg.audioTmpDir,
		Timeouts:    cfg.timeouts,
	})
	return c, nil
}

// collaborators describes the external tools and credentials a run needs.
// Acoustic analysis is optional; every other stage fails the run without
// its collaborator.
func collaborators(cfg config) *health.Registry {
	checks := map[string]health.Check{
		"ffmpeg":        {Category: "transcode", Probe: health.Executable(cfg.ffmpegPath)},
		"google-speech": {Category: "transcribe", Probe: health.Files(cfg.googleCredentials)},
		"judge":         {Category: "judge", Probe: health.Configured(cfg.geminiAPIKey)},
		"opensmile": {Category: "acoustic", Optional: true, Probe: func(ctx context.Context) (health.Status, error) {
			if st, err := health.Executable(cfg.opensmilePath)(ctx); st != health.StatusAvailable {
				return st, err
			}
			return health.Files(cfg.opensmileConfig)(ctx)
		}},
	}
	return health.NewRegistry(checks)
}

// logCollaborators reports collaborator availability once at startup.
func logCollaborators(ctx context.Context, r *health.Registry) {
	for _, info := range r.StatusAll(ctx) {
		attrs := []any{"name", info.Name, "category", info.Category, "status", info.Status}
		if info.Detail != "" {
			attrs = append(attrs, "detail", info.Detail)
		}
		if info.Status != health.StatusAvailable && !info.Optional {
			slog.Warn("collaborator unavailable", attrs...)
			continue
		}
		slog.Info("collaborator", attrs...)
	}
}

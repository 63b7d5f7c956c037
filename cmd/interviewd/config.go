package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/VISHAAL-1/ai-interview-platform/internal/env"
	"github.com/VISHAAL-1/ai-interview-platform/internal/pipeline"
)

type config struct {
	port              string
	ffmpegPath        string
	opensmilePath     string
	opensmileConfig   string
	googleCredentials string
	sttLanguage       string
	geminiAPIKey      string
	judgeBaseURL      string
	judgeModel        string
	judgeTemperature  float64
	judgeRatePerMin   int
	judgePoolSize     int
	databaseURL       string
	audioTmpDir       string
	maxConcurrentRuns int
	sendBuffer        int
	allowedOrigins    []string
	timeouts          pipeline.Timeouts
	shutdownTimeout   time.Duration
}

func loadConfig() config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("load .env", "error", err)
	}

	d := pipeline.DefaultTimeouts()
	return config{
		port:              env.Str("GATEWAY_PORT", "8000"),
		ffmpegPath:        env.Str("FFMPEG_PATH", "ffmpeg"),
		opensmilePath:     env.Str("OPENSMILE_PATH", ""),
		opensmileConfig:   env.Str("OPENSMILE_CONFIG_PATH", ""),
		googleCredentials: env.Str("GOOGLE_APPLICATION_CREDENTIALS", ""),
		sttLanguage:       env.Str("STT_LANGUAGE", "en-US"),
		geminiAPIKey:      env.Str("GEMINI_API_KEY", ""),
		judgeBaseURL:      env.Str("JUDGE_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
		judgeModel:        env.Str("JUDGE_MODEL", "gemini-2.0-flash"),
		judgeTemperature:  env.Float("JUDGE_TEMPERATURE", 0.2),
		judgeRatePerMin:   env.Int("JUDGE_RATE_PER_MIN", 60),
		judgePoolSize:     env.Int("JUDGE_POOL_SIZE", 16),
		databaseURL:       env.Str("DATABASE_URL", ""),
		audioTmpDir:       env.Str("AUDIO_TMP_DIR", os.TempDir()),
		maxConcurrentRuns: env.Int("MAX_CONCURRENT_RUNS", 8),
		sendBuffer:        env.Int("WS_SEND_BUFFER", 64),
		allowedOrigins:    env.List("ALLOWED_ORIGINS"),
		timeouts: pipeline.Timeouts{
			Transcode:  env.Duration("TRANSCODE_TIMEOUT", d.Transcode),
			Transcribe: env.Duration("TRANSCRIBE_TIMEOUT", d.Transcribe),
			Features:   env.Duration("FEATURES_TIMEOUT", d.Features),
			Judge:      env.Duration("JUDGE_TIMEOUT", d.Judge),
			Persist:    env.Duration("PERSIST_TIMEOUT", d.Persist),
			FollowUp:   env.Duration("FOLLOWUP_TIMEOUT", d.FollowUp),
		},
		shutdownTimeout: env.Duration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Package pipeline runs one recorded answer through transcoding,
// transcription, acoustic analysis, scoring, persistence and follow-up
// generation, broadcasting progress to the answer's room.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/VISHAAL-1/ai-interview-platform/internal/acoustic"
	"github.com/VISHAAL-1/ai-interview-platform/internal/audio"
	"github.com/VISHAAL-1/ai-interview-platform/internal/judge"
	"github.com/VISHAAL-1/ai-interview-platform/internal/metrics"
	"github.com/VISHAAL-1/ai-interview-platform/internal/store"
	"github.com/VISHAAL-1/ai-interview-platform/internal/trace"
)

// Clip is one recorded answer awaiting evaluation.
type Clip struct {
	RoomID      string
	InterviewID int64
	Question    string
	Audio       []byte
}

type Transcoder interface {
	Transcode(ctx context.Context, inPath, outPath string) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

type Judge interface {
	Score(ctx context.Context, question, transcript string, p acoustic.Payload) (judge.Result, error)
	FollowUp(ctx context.Context, transcript string) (string, error)
}

type ResultSink interface {
	SaveEvaluation(ctx context.Context, interviewID int64, question string, r judge.Result) (*store.Evaluation, error)
}

type Broadcaster interface {
	Broadcast(roomID string, msg any)
}

// Timeouts bound each stage. Zero fields take the defaults.
type Timeouts struct {
	Transcode  time.Duration
	Transcribe time.Duration
	Features   time.Duration
	Judge      time.Duration
	Persist    time.Duration
	FollowUp   time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Transcode:  60 * time.Second,
		Transcribe: 90 * time.Second,
		Features:   60 * time.Second,
		Judge:      60 * time.Second,
		Persist:    10 * time.Second,
		FollowUp:   30 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	pick := func(v, def time.Duration) time.Duration {
		if v > 0 {
			return v
		}
		return def
	}
	return Timeouts{
		Transcode:  pick(t.Transcode, d.Transcode),
		Transcribe: pick(t.Transcribe, d.Transcribe),
		Features:   pick(t.Features, d.Features),
		Judge:      pick(t.Judge, d.Judge),
		Persist:    pick(t.Persist, d.Persist),
		FollowUp:   pick(t.FollowUp, d.FollowUp),
	}
}

// Config holds the stage implementations shared by all runs.
type Config struct {
	Transcoder  Transcoder
	Transcriber Transcriber
	Features    acoustic.Extractor // nil disables acoustic analysis
	Judge       Judge
	Sink        ResultSink
	Broadcaster Broadcaster
	Tracer      *trace.Tracer
	TempDir     string
	Timeouts    Timeouts
}

// Pipeline is safe for concurrent use; each Run owns its temp files.
type Pipeline struct {
	cfg Config
}

func New(cfg Config) *Pipeline {
	cfg.Timeouts = cfg.Timeouts.withDefaults()
	return &Pipeline{cfg: cfg}
}

// Run evaluates one clip. Exactly one terminal event (evaluation or error)
// is broadcast to clip.RoomID. The returned error mirrors the error event
// and is for logging only.
func (p *Pipeline) Run(ctx context.Context, clip Clip) (err error) {
	start := time.Now()
	metrics.RunsActive.Inc()
	metrics.AudioBytes.Observe(float64(len(clip.Audio)))
	defer metrics.RunsActive.Dec()

	run := p.cfg.Tracer.StartRun(clip.RoomID, clip.InterviewID)
	var (
		transcript string
		result     judge.Result
	)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline panic", "room_id", clip.RoomID, "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			slog.Error("pipeline failed", "room_id", clip.RoomID, "interview_id", clip.InterviewID, "error", err)
			p.emit(clip.RoomID, ErrorEvent(err.Error()))
		}
		metrics.RunsTotal.WithLabelValues(outcome).Inc()
		metrics.E2EDuration.Observe(time.Since(start).Seconds())
		run.End(transcript, result.CombinedScore, err)
	}()

	inPath, err := p.tempFile("clip-*.webm", clip.Audio)
	if err != nil {
		return fmt.Errorf("stage input: %w", err)
	}
	defer removeTemp(inPath)

	wavPath, err := p.tempFile("clip-*.wav", nil)
	if err != nil {
		return fmt.Errorf("stage output: %w", err)
	}
	defer removeTemp(wavPath)

	err = p.stage(ctx, run, "transcode", p.cfg.Timeouts.Transcode, inPath, func(ctx context.Context) (string, error) {
		return wavPath, p.cfg.Transcoder.Transcode(ctx, inPath, wavPath)
	})
	if err != nil {
		return fmt.Errorf("transcode: %w", err)
	}
	p.emit(clip.RoomID, statusEvent(StatusConverted))

	err = p.stage(ctx, run, "transcribe", p.cfg.Timeouts.Transcribe, wavPath, func(ctx context.Context) (string, error) {
		var tErr error
		transcript, tErr = p.cfg.Transcriber.Transcribe(ctx, wavPath)
		return transcript, tErr
	})
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	p.emit(clip.RoomID, transcriptEvent(transcript))

	features := p.extractFeatures(ctx, run, wavPath)

	info, err := audio.Probe(wavPath)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	derived := acoustic.Derive(transcript, info.Duration(), features.Features.Voicing)
	payload := acoustic.NewPayload(features.Features, derived)

	err = p.stage(ctx, run, "judge", p.cfg.Timeouts.Judge, transcript, func(ctx context.Context) (string, error) {
		var jErr error
		result, jErr = p.cfg.Judge.Score(ctx, clip.Question, transcript, payload)
		return result.Feedback, jErr
	})
	if err != nil {
		return fmt.Errorf("judge: %w", err)
	}
	result.Feedback = fmt.Sprintf("[%s] %s", features.Status(), result.Feedback)

	err = p.stage(ctx, run, "persist", p.cfg.Timeouts.Persist, "", func(ctx context.Context) (string, error) {
		ev, sErr := p.cfg.Sink.SaveEvaluation(ctx, clip.InterviewID, clip.Question, result)
		if sErr != nil {
			return "", sErr
		}
		return fmt.Sprintf("evaluation_id=%d", ev.ID), nil
	})
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	var followUp string
	err = p.stage(ctx, run, "followup", p.cfg.Timeouts.FollowUp, transcript, func(ctx context.Context) (string, error) {
		var fErr error
		followUp, fErr = p.cfg.Judge.FollowUp(ctx, transcript)
		return followUp, fErr
	})
	if err != nil {
		return fmt.Errorf("followup: %w", err)
	}
	p.emit(clip.RoomID, followUpEvent(followUp))
	p.emit(clip.RoomID, evaluationEvent(result))

	slog.Info("pipeline done",
		"room_id", clip.RoomID,
		"interview_id", clip.InterviewID,
		"combined_score", result.CombinedScore,
		"acoustic", features.Available(),
		"e2e_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// stage runs fn under its own timeout and records duration, errors and a span.
func (p *Pipeline) stage(ctx context.Context, run *trace.RunTrace, name string, timeout time.Duration, input string, fn func(context.Context) (string, error)) error {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	output, err := fn(stageCtx)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	run.Span(name, start, input, output, err)
	if err != nil {
		metrics.Errors.WithLabelValues(name, errorType(err)).Inc()
	}
	return err
}

// extractFeatures is the one optional stage: failures degrade to zero features.
func (p *Pipeline) extractFeatures(ctx context.Context, run *trace.RunTrace, wavPath string) acoustic.Result {
	stageCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeouts.Features)
	defer cancel()

	start := time.Now()
	res := acoustic.Extract(stageCtx, p.cfg.Features, wavPath)
	metrics.StageDuration.WithLabelValues("features").Observe(time.Since(start).Seconds())

	var spanErr error
	if !res.Available() {
		metrics.AcousticUnavailable.Inc()
		slog.Warn("acoustic analysis unavailable", "reason", res.Reason)
		spanErr = errors.New(res.Reason)
	}
	run.Span("features", start, wavPath, res.Status(), spanErr)
	return res
}

func (p *Pipeline) emit(roomID string, ev Event) {
	p.cfg.Broadcaster.Broadcast(roomID, ev)
}

func (p *Pipeline) tempFile(pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(p.cfg.TempDir, pattern)
	if err != nil {
		return "", err
	}
	_, err = f.Write(data)
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		removeTemp(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("remove temp file", "path", path, "error", err)
	}
}

func errorType(err error) string {
	var te *audio.TranscodeError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &te):
		return "transcode"
	case errors.Is(err, store.ErrPersistence):
		return "persistence"
	default:
		return "failed"
	}
}

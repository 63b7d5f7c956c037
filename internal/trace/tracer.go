package trace

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxIOLen     = 500
	bufferSize   = 256
	writeTimeout = 5 * time.Second
)

// Writer persists trace records.
type Writer interface {
	CreateRun(ctx context.Context, r Run) error
	UpdateRun(ctx context.Context, r Run) error
	CreateSpan(ctx context.Context, sp Span) error
}

type traceMsg struct {
	kind string // "run_create", "run_update", "span"
	run  Run
	span Span
}

// Tracer writes trace data asynchronously via a buffered channel.
// All methods are nil-safe (no-op on nil receiver). When the buffer is
// full records are dropped and logged.
type Tracer struct {
	w    Writer
	ch   chan traceMsg
	done chan struct{}
}

// NewTracer starts the background writer. Must call Close when done.
func NewTracer(w Writer) *Tracer {
	t := &Tracer{
		w:    w,
		ch:   make(chan traceMsg, bufferSize),
		done: make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *Tracer) drain() {
	defer close(t.done)
	for msg := range t.ch {
		t.handle(msg)
	}
}

func (t *Tracer) handle(m traceMsg) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	handlers := map[string]func() error{
		"run_create": func() error { return t.w.CreateRun(ctx, m.run) },
		"run_update": func() error { return t.w.UpdateRun(ctx, m.run) },
		"span":       func() error { return t.w.CreateSpan(ctx, m.span) },
	}
	fn, ok := handlers[m.kind]
	if !ok {
		return
	}
	if err := fn(); err != nil {
		slog.Warn("trace write failed", "kind", m.kind, "error", err)
	}
}

func (t *Tracer) enqueue(m traceMsg) {
	select {
	case t.ch <- m:
	default:
		slog.Warn("trace buffer full, dropping record", "kind", m.kind)
	}
}

// StartRun begins a run for one clip.
func (t *Tracer) StartRun(roomID string, interviewID int64) *RunTrace {
	if t == nil {
		return nil
	}
	r := &RunTrace{t: t, id: uuid.NewString(), started: time.Now()}
	t.enqueue(traceMsg{kind: "run_create", run: Run{
		ID:          r.id,
		RoomID:      roomID,
		InterviewID: interviewID,
		StartedAt:   r.started.UTC(),
		Status:      StatusRunning,
	}})
	return r
}

// Close drains pending writes and shuts down the background goroutine.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	close(t.ch)
	<-t.done
}

// RunTrace records spans for a single run. Nil-safe.
type RunTrace struct {
	t       *Tracer
	id      string
	started time.Time
}

func (r *RunTrace) ID() string {
	if r == nil {
		return ""
	}
	return r.id
}

// Span records a completed stage. A non-nil err marks the span failed.
func (r *RunTrace) Span(name string, startedAt time.Time, input, output string, err error) {
	if r == nil {
		return
	}
	sp := Span{
		ID:         uuid.NewString(),
		RunID:      r.id,
		Name:       name,
		StartedAt:  startedAt.UTC(),
		DurationMs: float64(time.Since(startedAt).Microseconds()) / 1000,
		Input:      truncate(input, maxIOLen),
		Output:     truncate(output, maxIOLen),
		Status:     StatusOK,
	}
	if err != nil {
		sp.Status = StatusError
		sp.Error = truncate(err.Error(), maxIOLen)
	}
	r.t.enqueue(traceMsg{kind: "span", span: sp})
}

// End finalizes the run.
func (r *RunTrace) End(transcript string, combinedScore float64, err error) {
	if r == nil {
		return
	}
	run := Run{
		ID:            r.id,
		DurationMs:    float64(time.Since(r.started).Microseconds()) / 1000,
		Transcript:    truncate(transcript, maxIOLen),
		CombinedScore: combinedScore,
		Status:        StatusOK,
	}
	if err != nil {
		run.Status = StatusError
		run.Error = truncate(err.Error(), maxIOLen)
	}
	r.t.enqueue(traceMsg{kind: "run_update", run: run})
}

// truncate cuts s to at most max bytes on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

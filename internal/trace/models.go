package trace

import "time"

// Run represents one clip moving through the evaluation pipeline.
type Run struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	InterviewID   int64     `json:"interview_id"`
	StartedAt     time.Time `json:"started_at"`
	DurationMs    float64   `json:"duration_ms,omitempty"`
	Transcript    string    `json:"transcript,omitempty"`
	CombinedScore float64   `json:"combined_score,omitempty"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	SpanCount     int       `json:"span_count,omitempty"`
}

// Span represents an individual pipeline stage execution.
type Span struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms"`
	Input      string    `json:"input,omitempty"`
	Output     string    `json:"output,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusError   = "error"
)

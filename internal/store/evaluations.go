package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/VISHAAL-1/ai-interview-platform/internal/judge"
)

// Evaluation is a persisted judge result for one answered question.
type Evaluation struct {
	ID          int64     `json:"id"`
	InterviewID int64     `json:"interview_id"`
	Question    string    `json:"question"`
	judge.Result
	CreatedAt time.Time `json:"created_at"`
}

// Summary aggregates the evaluations of one interview.
type Summary struct {
	InterviewID    int64   `json:"interview_id"`
	Count          int     `json:"count"`
	AvgCorrectness float64 `json:"avg_correctness"`
	AvgFluency     float64 `json:"avg_fluency"`
	AvgCombined    float64 `json:"avg_combined"`
}

// SaveEvaluation inserts r and returns the stored row.
func (s *Store) SaveEvaluation(ctx context.Context, interviewID int64, question string, r judge.Result) (*Evaluation, error) {
	ev := &Evaluation{InterviewID: interviewID, Question: question, Result: r}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO evaluations (interview_id, question, correctness_score, fluency_score, combined_score, feedback)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		interviewID, question, r.CorrectnessScore, r.FluencyScore, r.CombinedScore, r.Feedback,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert evaluation: %v", ErrPersistence, err)
	}
	return ev, nil
}

// ListEvaluations returns an interview's evaluations, oldest first.
func (s *Store) ListEvaluations(ctx context.Context, interviewID int64) ([]Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, interview_id, question, correctness_score, fluency_score, combined_score, feedback, created_at
		FROM evaluations
		WHERE interview_id = $1
		ORDER BY created_at ASC, id ASC`, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	evals := []Evaluation{}
	for rows.Next() {
		var ev Evaluation
		if err = rows.Scan(&ev.ID, &ev.InterviewID, &ev.Question, &ev.CorrectnessScore, &ev.FluencyScore, &ev.CombinedScore, &ev.Feedback, &ev.CreatedAt); err != nil {
			return nil, err
		}
		evals = append(evals, ev)
	}
	return evals, rows.Err()
}

// Summarize returns count and average scores for an interview.
// An interview with no evaluations yields zeros.
func (s *Store) Summarize(ctx context.Context, interviewID int64) (*Summary, error) {
	sum := &Summary{InterviewID: interviewID}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(correctness_score), 0),
		       COALESCE(AVG(fluency_score), 0),
		       COALESCE(AVG(combined_score), 0)
		FROM evaluations
		WHERE interview_id = $1`, interviewID,
	).Scan(&sum.Count, &sum.AvgCorrectness, &sum.AvgFluency, &sum.AvgCombined)
	if err != nil {
		return nil, err
	}
	return sum, nil
}

// LogSink stands in for the database when none is configured: results are
// logged and given process-local ids.
type LogSink struct {
	lastID atomic.Int64
}

func NewLogSink() *LogSink { return &LogSink{} }

func (l *LogSink) SaveEvaluation(_ context.Context, interviewID int64, question string, r judge.Result) (*Evaluation, error) {
	ev := &Evaluation{
		ID:          l.lastID.Add(1),
		InterviewID: interviewID,
		Question:    question,
		Result:      r,
		CreatedAt:   time.Now().UTC(),
	}
	slog.Info("evaluation recorded",
		"id", ev.ID,
		"interview_id", interviewID,
		"combined_score", r.CombinedScore,
		"correctness_score", r.CorrectnessScore,
		"fluency_score", r.FluencyScore,
	)
	return ev, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/VISHAAL-1/ai-interview-platform/internal/trace"
)

const maxRuns = 1000

// CreateRun inserts a new run and prunes the oldest beyond maxRuns.
func (s *Store) CreateRun(ctx context.Context, r trace.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, room_id, interview_id, started_at, status) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.RoomID, r.InterviewID, utc(r.StartedAt), r.Status,
	)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC LIMIT $1)`,
		maxRuns,
	)
	return err
}

// UpdateRun sets the run's final fields.
func (s *Store) UpdateRun(ctx context.Context, r trace.Run) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET duration_ms = $1, transcript = $2, combined_score = $3, status = $4, error_msg = $5 WHERE id = $6`,
		r.DurationMs, r.Transcript, r.CombinedScore, r.Status, r.Error, r.ID,
	)
	return err
}

// CreateSpan inserts a span.
func (s *Store) CreateSpan(ctx context.Context, sp trace.Span) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spans (id, run_id, name, started_at, duration_ms, input, output, status, error_msg)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sp.ID, sp.RunID, sp.Name, utc(sp.StartedAt),
		sp.DurationMs, sp.Input, sp.Output, sp.Status, sp.Error,
	)
	return err
}

// ListRuns returns a room's runs newest first, with span counts.
func (s *Store) ListRuns(ctx context.Context, roomID string, limit, offset int) ([]trace.Run, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE room_id = $1`, roomID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.room_id, r.interview_id, r.started_at, r.duration_ms, r.transcript,
		       r.combined_score, r.status, r.error_msg, COUNT(sp.id) AS span_count
		FROM runs r
		LEFT JOIN spans sp ON sp.run_id = r.id
		WHERE r.room_id = $1
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT $2 OFFSET $3
	`, roomID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	runs := []trace.Run{}
	for rows.Next() {
		var r trace.Run
		if err = rows.Scan(&r.ID, &r.RoomID, &r.InterviewID, &r.StartedAt, &r.DurationMs, &r.Transcript,
			&r.CombinedScore, &r.Status, &r.Error, &r.SpanCount); err != nil {
			return nil, 0, err
		}
		runs = append(runs, r)
	}
	return runs, total, rows.Err()
}

// GetRun returns a single run with its spans.
func (s *Store) GetRun(ctx context.Context, runID string) (*trace.Run, []trace.Span, error) {
	var r trace.Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, room_id, interview_id, started_at, duration_ms, transcript, combined_score, status, error_msg
		 FROM runs WHERE id = $1`, runID,
	).Scan(&r.ID, &r.RoomID, &r.InterviewID, &r.StartedAt, &r.DurationMs, &r.Transcript, &r.CombinedScore, &r.Status, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, started_at, duration_ms, input, output, status, error_msg
		 FROM spans WHERE run_id = $1 ORDER BY started_at ASC`,
		runID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	spans := []trace.Span{}
	for rows.Next() {
		var sp trace.Span
		if err = rows.Scan(&sp.ID, &sp.RunID, &sp.Name, &sp.StartedAt, &sp.DurationMs, &sp.Input, &sp.Output, &sp.Status, &sp.Error); err != nil {
			return nil, nil, err
		}
		spans = append(spans, sp)
	}
	r.SpanCount = len(spans)
	return &r, spans, rows.Err()
}

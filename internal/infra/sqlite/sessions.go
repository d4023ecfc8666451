package sqlite

import (
	"context"
	"fmt"

	"github.com/strollr-labs/strollr/internal/domain"
)

// ─── Session Summary Store ──────────────────────────────────────────────────

// PutSummary persists a finalized walk summary.
func (db *DB) PutSummary(ctx context.Context, s domain.SessionSummary) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO session_summaries (
			session_id, user_id, started_at, ended_at,
			distance_meters, duration_seconds, sample_count, rejected_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			ended_at         = excluded.ended_at,
			distance_meters  = excluded.distance_meters,
			duration_seconds = excluded.duration_seconds,
			sample_count     = excluded.sample_count,
			rejected_count   = excluded.rejected_count
	`, s.SessionID, s.UserID, encodeTime(s.StartedAt), encodeTime(s.EndedAt),
		s.DistanceMeters, s.DurationSeconds, s.SampleCount, s.RejectedCount)
	if err != nil {
		return fmt.Errorf("put summary: %w", err)
	}
	return nil
}

// ListSummaries returns a user's most recent walks, newest first.
func (db *DB) ListSummaries(ctx context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT session_id, user_id, started_at, ended_at,
			distance_meters, duration_seconds, sample_count, rejected_count
		FROM session_summaries
		WHERE user_id = ?
		ORDER BY ended_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		var s domain.SessionSummary
		var started, ended string
		if err := rows.Scan(&s.SessionID, &s.UserID, &started, &ended,
			&s.DistanceMeters, &s.DurationSeconds, &s.SampleCount, &s.RejectedCount); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.StartedAt = decodeTime(started)
		s.EndedAt = decodeTime(ended)
		out = append(out, s)
	}
	return out, rows.Err()
}

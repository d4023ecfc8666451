// Package sqlite implements the persistence collaborators on an embedded
// SQLite database: consolidated discoveries, credit ledgers, and session
// summaries.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle and implements the domain store interfaces.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for tests.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer keeps WAL checkpoints and in-memory databases sane.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}

	db := &DB{db: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the database handle.
func (db *DB) Close() error { return db.db.Close() }

// migrate applies the schema. Each string is a single SQL statement
// (SQLite executes one at a time).
func (db *DB) migrate() error {
	stmts := []string{
		// One row per unique place per session.
		`CREATE TABLE IF NOT EXISTS discoveries (
			user_id               TEXT NOT NULL,
			session_id            TEXT NOT NULL,
			place_id              TEXT NOT NULL,
			display_name          TEXT NOT NULL DEFAULT '',
			categories_json       TEXT NOT NULL DEFAULT '[]',
			rating                REAL NOT NULL DEFAULT 0,
			rating_count          INTEGER NOT NULL DEFAULT 0,
			latitude              REAL NOT NULL DEFAULT 0,
			longitude             REAL NOT NULL DEFAULT 0,
			address               TEXT NOT NULL DEFAULT '',
			sources_json          TEXT NOT NULL DEFAULT '[]',
			on_demand_hits        INTEGER NOT NULL DEFAULT 0,
			route_query_hits      INTEGER NOT NULL DEFAULT 0,
			saved                 INTEGER NOT NULL DEFAULT 0,
			dismissed             INTEGER NOT NULL DEFAULT 0,
			created_at            TEXT NOT NULL,
			updated_at            TEXT NOT NULL,
			PRIMARY KEY (user_id, session_id, place_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_discoveries_session ON discoveries(session_id)`,

		// Per-user on-demand query budget. credits_remaining is a small
		// INTEGER by schema; the domain layer still validates it on read.
		`CREATE TABLE IF NOT EXISTS credit_ledgers (
			user_id                TEXT PRIMARY KEY,
			credits_remaining      INTEGER NOT NULL DEFAULT 0,
			max_credits_per_period INTEGER NOT NULL DEFAULT 0,
			last_reset_at          TEXT NOT NULL DEFAULT '',
			last_query_at          TEXT NOT NULL DEFAULT ''
		)`,

		// Finalized walk summaries.
		`CREATE TABLE IF NOT EXISTS session_summaries (
			session_id       TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			started_at       TEXT NOT NULL,
			ended_at         TEXT NOT NULL,
			distance_meters  REAL NOT NULL DEFAULT 0,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			sample_count     INTEGER NOT NULL DEFAULT 0,
			rejected_count   INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_summaries_user ON session_summaries(user_id, ended_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── Time Encoding ──────────────────────────────────────────────────────────
// Timestamps are stored as RFC 3339 TEXT. An empty string is a zero time.

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

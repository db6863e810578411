// Package store persists workflow runs, checkpoints, and model call records.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"coursecraft/internal/domain"
)

// SQLiteRunStore implements domain.RunStore using SQLite. All writes are
// audit-only; the workflow never reads them back for control flow.
type SQLiteRunStore struct {
	db *sql.DB
}

// NewSQLiteRunStore opens (or creates) a SQLite database at dbPath
// and runs the schema migration.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open run db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run db: %w", err)
	}
	return &SQLiteRunStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			session_id   TEXT PRIMARY KEY,
			mode         TEXT NOT NULL,
			status       TEXT NOT NULL,
			deliverables BLOB,
			error        TEXT,
			updated_at   TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS checkpoints (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			phase      TEXT NOT NULL,
			snapshot   TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS call_records (
			id            TEXT PRIMARY KEY,
			model         TEXT NOT NULL,
			input_tokens  INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			latency_ms    REAL NOT NULL,
			cost_usd      REAL NOT NULL,
			success       INTEGER NOT NULL,
			fallback      INTEGER NOT NULL,
			cached        INTEGER NOT NULL,
			error         TEXT,
			record        TEXT NOT NULL,
			created_at    TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

// SaveRun upserts the run record keyed by session.
func (s *SQLiteRunStore) SaveRun(_ context.Context, run domain.RunRecord) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		INSERT INTO runs (session_id, mode, status, deliverables, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			deliverables = excluded.deliverables,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		run.SessionID, run.Mode, run.Status, run.Deliverables, run.Error, now,
	)
	return err
}

// SaveCheckpoint appends an immutable checkpoint snapshot.
func (s *SQLiteRunStore) SaveCheckpoint(_ context.Context, sessionID string, cp domain.Checkpoint) error {
	snapshot, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO checkpoints (id, session_id, phase, snapshot, created_at) VALUES (?, ?, ?, ?, ?)",
		cp.ID, sessionID, string(cp.Phase), string(snapshot),
		cp.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// SaveCallRecord appends one model call record.
func (s *SQLiteRunStore) SaveCallRecord(_ context.Context, rec domain.ModelCallRecord) error {
	full, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO call_records
			(id, model, input_tokens, output_tokens, latency_ms, cost_usd, success, fallback, cached, error, record, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Model, rec.InputTokens, rec.OutputTokens, rec.LatencyMS, rec.CostUSD,
		boolToInt(rec.Success), boolToInt(rec.Fallback), boolToInt(rec.Cached),
		rec.Error, string(full), rec.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// CountCheckpoints returns the number of checkpoints stored for a session.
func (s *SQLiteRunStore) CountCheckpoints(_ context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM checkpoints WHERE session_id = ?", sessionID).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.RunStore = (*SQLiteRunStore)(nil)

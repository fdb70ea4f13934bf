// Package history persists accepted usage entries in SQLite so totals
// survive restarts and the CLI can answer queries without rescanning
// every log file.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/howmuchclaude/claudeusage/internal/usage"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: resolving home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "claudeusage", "usage.db"), nil
}

func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: creating DB dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening DB: %w", err)
	}

	store := NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS usage_entries (
			dedup_key TEXT PRIMARY KEY,
			recorded_at TEXT NOT NULL,
			occurred_at TEXT NOT NULL,
			session_id TEXT,
			model TEXT NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			cache_creation_tokens INTEGER NOT NULL,
			cache_read_tokens INTEGER NOT NULL,
			cost_usd REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_usage_entries_occurred_at ON usage_entries(occurred_at);`,
		`CREATE INDEX IF NOT EXISTS idx_usage_entries_session ON usage_entries(session_id, occurred_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history: init schema: %w", err)
		}
	}
	return nil
}

// IngestResult reports how a batch landed: inserted rows versus rows
// already present under the same dedup key.
type IngestResult struct {
	Inserted int
	Deduped  int
}

// Ingest records a batch of entries. Conflicting dedup keys are left
// untouched, so re-ingesting after a full rescan is harmless.
func (s *Store) Ingest(ctx context.Context, entries []usage.Entry, costs []float64) (IngestResult, error) {
	if len(entries) != len(costs) {
		return IngestResult{}, fmt.Errorf("history: %d entries but %d costs", len(entries), len(costs))
	}
	if len(entries) == 0 {
		return IngestResult{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return IngestResult{}, fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO usage_entries (
		dedup_key, recorded_at, occurred_at, session_id, model,
		input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost_usd
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(dedup_key) DO NOTHING`)
	if err != nil {
		return IngestResult{}, fmt.Errorf("history: prepare insert: %w", err)
	}
	defer stmt.Close()

	recordedAt := s.now().UTC().Format(time.RFC3339Nano)
	var result IngestResult
	for i, e := range entries {
		res, err := stmt.ExecContext(ctx,
			e.ID,
			recordedAt,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.SessionID,
			e.Model,
			e.InputTokens,
			e.OutputTokens,
			e.CacheCreationTokens,
			e.CacheReadTokens,
			costs[i],
		)
		if err != nil {
			return result, fmt.Errorf("history: insert entry: %w", err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			result.Deduped++
		} else {
			result.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("history: commit: %w", err)
	}
	return result, nil
}

// Totals is the all-time rollup of persisted entries.
type Totals struct {
	Entries             int     `json:"entries"`
	Sessions            int     `json:"sessions"`
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	CostUSD             float64 `json:"cost_usd"`
}

func (s *Store) Totals(ctx context.Context) (Totals, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COUNT(DISTINCT session_id),
		COALESCE(SUM(input_tokens), 0),
		COALESCE(SUM(output_tokens), 0),
		COALESCE(SUM(cache_creation_tokens), 0),
		COALESCE(SUM(cache_read_tokens), 0),
		COALESCE(SUM(cost_usd), 0)
	FROM usage_entries`)

	var t Totals
	if err := row.Scan(
		&t.Entries, &t.Sessions,
		&t.InputTokens, &t.OutputTokens,
		&t.CacheCreationTokens, &t.CacheReadTokens,
		&t.CostUSD,
	); err != nil {
		return Totals{}, fmt.Errorf("history: totals query: %w", err)
	}
	return t, nil
}

// Recent returns the most recently occurred entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]usage.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		dedup_key, occurred_at, session_id, model,
		input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens
	FROM usage_entries
	ORDER BY occurred_at DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent query: %w", err)
	}
	defer rows.Close()

	var entries []usage.Entry
	for rows.Next() {
		var e usage.Entry
		var occurredAt string
		if err := rows.Scan(
			&e.ID, &occurredAt, &e.SessionID, &e.Model,
			&e.InputTokens, &e.OutputTokens,
			&e.CacheCreationTokens, &e.CacheReadTokens,
		); err != nil {
			return entries, fmt.Errorf("history: scan row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, occurredAt); err == nil {
			e.Timestamp = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

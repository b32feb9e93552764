// Package history records aggregated reports in a local SQLite database so
// that gadget counts can be compared across obfuscator revisions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/exploopio/ropstat/pkg/aggregate"
	"github.com/exploopio/ropstat/pkg/gadget"
)

// Run is one recorded aggregation.
type Run struct {
	ID        string          `json:"id"`
	Mode      aggregate.Mode  `json:"mode"`
	Binary    string          `json:"binary,omitempty"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"created_at"`
	Rows      []aggregate.Row `json:"rows"`
}

// Store provides SQLite-based run history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates the database tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		binary TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rows (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		label TEXT NOT NULL,
		total INTEGER NOT NULL,
		memory INTEGER NOT NULL,
		arith INTEGER NOT NULL,
		logic INTEGER NOT NULL,
		ctrl INTEGER NOT NULL,
		other INTEGER NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_binary ON runs(binary);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveReport records a report and returns the new run id.
func (s *Store) SaveReport(ctx context.Context, report *aggregate.Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, mode, binary, title, created_at) VALUES (?, ?, ?, ?, ?)
	`, id, string(report.Mode), report.Binary, report.Title, createdAt.UnixNano()); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, row := range report.Rows {
		c := row.Counts
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rows (run_id, position, label, total, memory, arith, logic, ctrl, other)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, row.Label, c.Total, c.Memory, c.Arithmetic, c.Logic, c.ControlFlow, c.Other); err != nil {
			return "", fmt.Errorf("insert row %s: %w", row.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ListRuns returns recorded runs, newest first. A non-empty binary restricts
// the result to per-binary runs of that binary; a positive limit caps the
// number of runs returned.
func (s *Store) ListRuns(ctx context.Context, binary string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, mode, binary, title, created_at FROM runs`
	var args []any
	if binary != "" {
		query += ` WHERE binary = ?`
		args = append(args, binary)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range runs {
		if runs[i].Rows, err = s.loadRows(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// GetRun returns the run with the given id, or nil if there is none.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, mode, binary, title, created_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if run.Rows, err = s.loadRows(ctx, run.ID); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) loadRows(ctx context.Context, runID string) ([]aggregate.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, total, memory, arith, logic, ctrl, other
		FROM rows WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []aggregate.Row
	for rows.Next() {
		var (
			label string
			c     gadget.Counts
		)
		if err := rows.Scan(&label, &c.Total, &c.Memory, &c.Arithmetic, &c.Logic, &c.ControlFlow, &c.Other); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, aggregate.Row{Label: label, Counts: c})
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run       Run
		mode      string
		createdAt int64
	)
	if err := sc.Scan(&run.ID, &mode, &run.Binary, &run.Title, &createdAt); err != nil {
		return Run{}, err
	}
	run.Mode = aggregate.Mode(mode)
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	return run, nil
}

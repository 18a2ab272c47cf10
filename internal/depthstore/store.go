// Package depthstore persists depth reports to a SQLite database so that runs
// over the same fixtures can be compared.
package depthstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/funvibe/ilstack/internal/report"
)

// Run is one stored export
type Run struct {
	ID      uuid.UUID
	Fixture string
	Created time.Time
	Tables  int
}

// Store manages the depth database
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Open creates or opens the database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite takes one writer at a time
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		fixture TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		subroutine TEXT NOT NULL,
		kind TEXT NOT NULL,
		method TEXT NOT NULL,
		context TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS depths (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		block TEXT NOT NULL,
		idx INTEGER NOT NULL,
		local_depth INTEGER NOT NULL,
		global_depth INTEGER NOT NULL,
		terminal INTEGER NOT NULL,
		call_on_this INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq, block, idx)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_fixture ON runs(fixture);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores the tables of one fixture as a new run
func (s *Store) SaveRun(ctx context.Context, fixture string, tables []*report.Table) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, fixture, created_at) VALUES (?, ?, ?)`,
		id.String(), fixture, time.Now().Unix()); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save run: %w", err)
	}

	for seq, t := range tables {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reports (run_id, seq, subroutine, kind, method, context, max_depth)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id.String(), seq, t.Subroutine, t.Kind, t.Method, t.Context, t.MaxDepth); err != nil {
			return uuid.Nil, fmt.Errorf("failed to save table %s: %w", t.Subroutine, err)
		}

		calls := make(map[string]bool, len(t.CallsOnThis))
		for _, c := range t.CallsOnThis {
			calls[c] = true
		}
		for _, r := range t.Rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO depths (run_id, seq, block, idx, local_depth, global_depth, terminal, call_on_this)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, id.String(), seq, r.Block, r.Index, r.Local, r.Global, r.Terminal, calls[r.Block]); err != nil {
				return uuid.Nil, fmt.Errorf("failed to save depth %s:%s[%d]: %w", t.Subroutine, r.Block, r.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// Load returns the tables stored for a run in their original order
func (s *Store) Load(ctx context.Context, id uuid.UUID) ([]*report.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, subroutine, kind, method, context, max_depth
		FROM reports WHERE run_id = ? ORDER BY seq
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}
	var tables []*report.Table
	for rows.Next() {
		var seq int
		t := &report.Table{}
		if err := rows.Scan(&seq, &t.Subroutine, &t.Kind, &t.Method, &t.Context, &t.MaxDepth); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, sql.ErrNoRows)
	}

	for seq, t := range tables {
		if err := s.loadRows(ctx, id, seq, t); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

func (s *Store) loadRows(ctx context.Context, id uuid.UUID, seq int, t *report.Table) error {
	// rowid keeps insertion order, which is block then index order
	rows, err := s.db.QueryContext(ctx, `
		SELECT block, idx, local_depth, global_depth, terminal, call_on_this
		FROM depths WHERE run_id = ? AND seq = ? ORDER BY rowid
	`, id.String(), seq)
	if err != nil {
		return fmt.Errorf("failed to load depths: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r report.Row
		var call bool
		if err := rows.Scan(&r.Block, &r.Index, &r.Local, &r.Global, &r.Terminal, &call); err != nil {
			return fmt.Errorf("failed to scan depth: %w", err)
		}
		if call && r.Terminal {
			t.CallsOnThis = append(t.CallsOnThis, r.Block)
		}
		t.Rows = append(t.Rows, r)
	}
	return rows.Err()
}

// Runs lists the stored runs of fixture, newest first. An empty fixture lists
// every run.
func (s *Store) Runs(ctx context.Context, fixture string) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.fixture, r.created_at, COUNT(t.seq)
		FROM runs r LEFT JOIN reports t ON t.run_id = r.id
		WHERE ? = '' OR r.fixture = ?
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.rowid DESC
	`, fixture, fixture)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var id string
		var created int64
		if err := rows.Scan(&id, &run.Fixture, &created, &run.Tables); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run %q: %w", id, err)
		}
		run.Created = time.Unix(created, 0)
		out = append(out, run)
	}
	return out, rows.Err()
}

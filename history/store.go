// Package history keeps benchmark runs in a SQLite database so runs can be
// listed and compared with each other.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

var ErrNotFound = errors.New("run not found")

// Store is the run history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and brings its schema up to
// date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes a run and its entries in one transaction.
func (s *Store) Save(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, engine, suites, errors, elapsed_ns, failure) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixNano(), run.Engine, run.Suites, run.Errors, int64(run.Elapsed), run.Failure)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, seq, suite, kind, name, value, message) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, e := range run.Entries {
		if _, err := stmt.ExecContext(ctx, run.ID, i, e.Suite, string(e.Kind), e.Name, e.Value, e.Message); err != nil {
			return fmt.Errorf("insert result %d of run %s: %w", i, run.ID, err)
		}
	}
	return tx.Commit()
}

// Latest returns up to n runs, newest first, with their entries.
func (s *Store) Latest(ctx context.Context, n int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, engine, suites, errors, elapsed_ns, failure FROM runs ORDER BY started_at DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, run := range runs {
		if err := s.loadEntries(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Get returns the run whose id starts with prefix. The prefix must be
// unambiguous.
func (s *Store) Get(ctx context.Context, prefix string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, engine, suites, errors, elapsed_ns, failure FROM runs WHERE id LIKE ? || '%' LIMIT 2`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 2:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", prefix)
	}
	rows.Close()
	if err := s.loadEntries(ctx, found[0]); err != nil {
		return nil, err
	}
	return found[0], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run       Run
		startedAt int64
		elapsed   int64
	)
	if err := sc.Scan(&run.ID, &startedAt, &run.Engine, &run.Suites, &run.Errors, &elapsed, &run.Failure); err != nil {
		return nil, err
	}
	run.StartedAt = time.Unix(0, startedAt).UTC()
	run.Elapsed = time.Duration(elapsed)
	return &run, nil
}

func (s *Store) loadEntries(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT suite, kind, name, value, message FROM results WHERE run_id = ? ORDER BY seq`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			e    Entry
			kind string
		)
		if err := rows.Scan(&e.Suite, &kind, &e.Name, &e.Value, &e.Message); err != nil {
			return err
		}
		e.Kind = Kind(kind)
		run.Entries = append(run.Entries, e)
	}
	return rows.Err()
}

// Package sqlite keeps the openBIS state in an embedded SQLite file. The
// in-memory engine runs the transactions; committed buckets are written as
// JSON rows of a single table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"openbis/internal/infra/persistence/memory"
	"openbis/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultPath = "openbis.db"

	createStateTable = `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`
	upsertBucket = `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`
)

// Store is a memory.Store backed by a SQLite file.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string

	mu      sync.Mutex
	written memory.Digests
}

// NewStore opens the database at path, creating it and its parent
// directories when missing, and loads the saved state.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serializes them anyway.
	db.SetMaxOpenConns(1)
	s := &Store{Store: memory.NewStore(engine), db: db, path: path, written: memory.Digests{}}
	if err := s.load(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createStateTable); err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	loaded := 0
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return fmt.Errorf("scan state row: %w", err)
		}
		ok, err := snapshot.DecodeBucket(name, payload)
		if err != nil {
			return err
		}
		if ok {
			loaded++
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if loaded == 0 {
		return nil
	}
	s.ImportState(snapshot)
	enc, err := s.ExportState().Encode()
	if err != nil {
		return err
	}
	s.written.Record(enc, memory.BucketNames...)
	return nil
}

// RunInTransaction commits fn on the in-memory engine and then writes the
// buckets it changed. A failed write comes back as a domain.FlushError.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.flush(ctx); err != nil {
		return res, domain.FlushError{Err: err}
	}
	return res, nil
}

// flush writes every bucket whose payload changed since the last flush.
// Buckets of a failed flush stay pending.
func (s *Store) flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc, err := s.ExportState().Encode()
	if err != nil {
		return err
	}
	pending := s.written.Pending(enc)
	if len(pending) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	for _, name := range pending {
		if _, err := tx.ExecContext(ctx, upsertBucket, name, enc[name]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite tx: %w", err)
	}
	s.written.Record(enc, pending...)
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the database handle to tests.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

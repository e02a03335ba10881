// Package postgres keeps the openBIS state in PostgreSQL. Transactions run on
// the in-memory engine; after each commit the buckets whose JSON changed are
// upserted into the JSONB `state` table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"openbis/internal/infra/persistence/memory"
	"openbis/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/openbis?sslmode=disable"
)

const (
	createStateTable = `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	selectState     = `SELECT bucket, payload FROM state`
	upsertBucket    = `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`
	selectCodesByFK = `SELECT value->>'code' FROM state, jsonb_each(payload) WHERE bucket = 'data_sets' AND value->>$1 = $2 ORDER BY 1`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a memory.Store whose committed state survives restarts.
type Store struct {
	*memory.Store
	db *sql.DB

	mu      sync.Mutex
	written memory.Digests
}

// NewStore connects to dsn, or a local default when empty, creates the
// state table when missing and loads the stored snapshot.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, written: memory.Digests{}}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createStateTable); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, selectState)
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
			return fmt.Errorf("scan state: %w", err)
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
	// JSONB does not keep the written bytes, so digests come from a fresh
	// encoding of the imported state.
	enc, err := s.ExportState().Encode()
	if err != nil {
		return err
	}
	s.written.Record(enc, memory.BucketNames...)
	return nil
}

// RunInTransaction runs fn on the in-memory engine and writes the changed
// buckets once it commits. A failed write comes back as a domain.FlushError.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, domain.FlushError{Err: err}
	}
	return res, nil
}

// DB exposes the connection pool.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// ListDataSetCodesByExperiment lists the codes of an experiment's data sets
// straight from the stored snapshot.
func (s *Store) ListDataSetCodesByExperiment(ctx context.Context, experimentID string) ([]string, error) {
	return s.dataSetCodes(ctx, "experiment_id", experimentID)
}

// ListDataSetCodesBySample lists the codes of a sample's data sets straight
// from the stored snapshot.
func (s *Store) ListDataSetCodesBySample(ctx context.Context, sampleID string) ([]string, error) {
	return s.dataSetCodes(ctx, "sample_id", sampleID)
}

func (s *Store) dataSetCodes(ctx context.Context, field, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, selectCodesByFK, field, id)
	if err != nil {
		return nil, fmt.Errorf("query data set codes by %s: %w", field, err)
	}
	defer func() { _ = rows.Close() }()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan data set code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate data set codes: %w", err)
	}
	return codes, nil
}

// persist upserts the buckets whose encoding differs from the last write.
// Buckets of a failed write stay pending for the next commit.
func (s *Store) persist(ctx context.Context) error {
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
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, name := range pending {
		if _, err := tx.ExecContext(ctx, upsertBucket, name, enc[name]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.written.Record(enc, pending...)
	return nil
}

// OverrideSQLOpen replaces sql.Open for tests. The returned func restores it.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

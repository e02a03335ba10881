// Package testutil provides a stub database/sql driver that emulates the
// postgres snapshot table for store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// StubConn keeps the state table in memory and records executed statements.
// Upserts issued inside a transaction become visible on commit.
type StubConn struct {
	mu         sync.Mutex
	open       *stubTx
	Execs      []string
	Buckets    map[string][]byte
	FailExec   bool
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	FailQuery  bool
	FailBucket string
	RowsErr    error
}

// NewStubDB returns a sql.DB backed by a fresh in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Buckets: make(map[string][]byte)}
	return conn.OpenDB(), conn
}

// OpenDB returns a new sql.DB over the same stub state, so a test can keep
// going after a store closed its handle.
func (c *StubConn) OpenDB() *sql.DB {
	return sql.OpenDB(stubConnector{conn: c})
}

// Bucket returns the last payload written for bucket.
func (c *StubConn) Bucket(name string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Buckets[name]
}

type stubConnector struct {
	conn *StubConn
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c stubConnector) Driver() driver.Driver                        { return stubDriver{conn: c.conn} }

type stubDriver struct {
	conn *StubConn
}

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	if c.open != nil {
		return nil, fmt.Errorf("transaction already open")
	}
	c.open = &stubTx{conn: c, pending: make(map[string][]byte)}
	return c.open, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(upper, "INSERT INTO STATE"):
		if len(args) != 2 {
			return nil, fmt.Errorf("expected bucket and payload, got %d args", len(args))
		}
		bucket, _ := args[0].Value.(string)
		if bucket == c.FailBucket && bucket != "" {
			return nil, fmt.Errorf("exec fail for %s", bucket)
		}
		payload, _ := args[1].Value.([]byte)
		target := c.Buckets
		if c.open != nil {
			target = c.open.pending
		}
		target[bucket] = append([]byte(nil), payload...)
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(upper, "TRUNCATE"):
		c.Buckets = make(map[string][]byte)
		return driver.RowsAffected(0), nil
	}
	return nil, fmt.Errorf("unsupported statement: %s", query)
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailQuery {
		return nil, fmt.Errorf("query fail")
	}
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "jsonb_each"):
		return c.dataSetCodes(args)
	case strings.HasPrefix(lower, "select bucket, payload from state"):
		names := make([]string, 0, len(c.Buckets))
		for name := range c.Buckets {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]driver.Value, 0, len(names))
		for _, name := range names {
			rows = append(rows, []driver.Value{name, c.Buckets[name]})
		}
		return &stubRows{cols: []string{"bucket", "payload"}, rows: rows, err: c.RowsErr}, nil
	}
	return nil, fmt.Errorf("unsupported query: %s", query)
}

// dataSetCodes emulates the jsonb_each lookup over the data_sets bucket. The
// arguments are the JSON field and the id it must equal.
func (c *StubConn) dataSetCodes(args []driver.NamedValue) (driver.Rows, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("expected field and id arguments, got %d", len(args))
	}
	field, _ := args[0].Value.(string)
	id, _ := args[1].Value.(string)
	var entries map[string]map[string]any
	if payload := c.Buckets["data_sets"]; len(payload) > 0 {
		if err := json.Unmarshal(payload, &entries); err != nil {
			return nil, err
		}
	}
	var codes []string
	for _, entry := range entries {
		if v, ok := entry[field].(string); ok && v == id {
			code, _ := entry["code"].(string)
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	rows := make([][]driver.Value, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, []driver.Value{code})
	}
	return &stubRows{cols: []string{"code"}, rows: rows, err: c.RowsErr}, nil
}

type stubTx struct {
	conn    *StubConn
	pending map[string][]byte
}

func (t *stubTx) Commit() error {
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = nil
	if c.FailCommit {
		return fmt.Errorf("commit fail")
	}
	for bucket, payload := range t.pending {
		c.Buckets[bucket] = payload
	}
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.open = nil
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

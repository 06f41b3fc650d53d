package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

const fakeDriverName = "postgres-fake"

func init() {
	sql.Register(fakeDriverName, fakeDriver{})
}

// fakeResult is the canned answer to one query.
type fakeResult struct {
	columns []string
	rows    [][]driver.Value
	err     error
}

// fakeServer answers queries by their exact text.
type fakeServer struct {
	mu      sync.Mutex
	results map[string]fakeResult
	calls   map[string]int
}

func (s *fakeServer) query(q string) (fakeResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[q]++
	r, ok := s.results[q]
	return r, ok
}

func (s *fakeServer) callCount(q string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[q]
}

var (
	fakeServers   sync.Map
	fakeServerSeq atomic.Int64
)

// openFake registers a server answering results and returns a handle on it.
func openFake(t *testing.T, results map[string]fakeResult) (*sql.DB, *fakeServer) {
	t.Helper()
	s := &fakeServer{results: results, calls: make(map[string]int)}
	name := "server-" + strconv.FormatInt(fakeServerSeq.Add(1), 10)
	fakeServers.Store(name, s)
	db, err := sql.Open(fakeDriverName, name)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		fakeServers.Delete(name)
	})
	return db, s
}

type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) {
	s, ok := fakeServers.Load(name)
	if !ok {
		return nil, errors.New("fake: no such server " + name)
	}
	return &fakeConn{server: s.(*fakeServer)}, nil
}

type fakeConn struct {
	server *fakeServer
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("fake: prepare not supported")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("fake: transactions not supported")
}

func (c *fakeConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if len(args) != 0 {
		return nil, errors.New("fake: arguments not supported")
	}
	r, ok := c.server.query(query)
	if !ok {
		return nil, errors.New("fake: unexpected query " + query)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &fakeRows{columns: r.columns, rows: r.rows}, nil
}

type fakeRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *fakeRows) Columns() []string { return r.columns }

func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

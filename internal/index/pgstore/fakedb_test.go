package pgstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
)

// fakeDB is a database/sql driver that records statements and answers the
// two row-returning queries the store issues.
type fakeDB struct {
	mu      sync.Mutex
	log     []string
	args    [][]driver.NamedValue
	failOn  string
	failErr error
	rows    [][]driver.Value
	nextID  int64
}

func (f *fakeDB) open() *sql.DB { return sql.OpenDB(fakeConnector{f}) }

func (f *fakeDB) record(q string, args []driver.NamedValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, q)
	f.args = append(f.args, args)
	if f.failOn != "" && strings.Contains(q, f.failOn) {
		return f.failErr
	}
	return nil
}

func (f *fakeDB) statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

type fakeConnector struct{ f *fakeDB }

func (c fakeConnector) Connect(context.Context) (driver.Conn, error) { return &fakeConn{c.f}, nil }
func (c fakeConnector) Driver() driver.Driver                        { return fakeDriver{c.f} }

type fakeDriver struct{ f *fakeDB }

func (d fakeDriver) Open(string) (driver.Conn, error) { return &fakeConn{d.f}, nil }

type fakeConn struct{ f *fakeDB }

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare not supported") }
func (c *fakeConn) Close() error                        { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	if err := c.f.record("BEGIN", nil); err != nil {
		return nil, err
	}
	return fakeTx{c.f}, nil
}

func (c *fakeConn) ExecContext(_ context.Context, q string, args []driver.NamedValue) (driver.Result, error) {
	if err := c.f.record(q, args); err != nil {
		return nil, err
	}
	return driver.RowsAffected(0), nil
}

func (c *fakeConn) QueryContext(_ context.Context, q string, args []driver.NamedValue) (driver.Rows, error) {
	if err := c.f.record(q, args); err != nil {
		return nil, err
	}
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if strings.HasPrefix(q, "INSERT") {
		c.f.nextID++
		return &fakeRows{cols: []string{"id"}, data: [][]driver.Value{{c.f.nextID}}}, nil
	}
	return &fakeRows{cols: []string{"id", "path", "resolution", "st_asbinary"}, data: c.f.rows}, nil
}

type fakeTx struct{ f *fakeDB }

func (t fakeTx) Commit() error   { return t.f.record("COMMIT", nil) }
func (t fakeTx) Rollback() error { return t.f.record("ROLLBACK", nil) }

type fakeRows struct {
	cols []string
	data [][]driver.Value
	i    int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.i])
	r.i++
	return nil
}

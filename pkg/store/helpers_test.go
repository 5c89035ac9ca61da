package store_test

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type call struct {
	sql  string
	args []any
}

// fakeDB answers queries from scripted responses in call order.
type fakeDB struct {
	mu    sync.Mutex
	calls []call
	rows  []pgx.Row
	sets  []*fakeRows
}

func (db *fakeDB) record(sql string, args []any) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.calls = append(db.calls, call{sql: sql, args: args})
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.record(sql, args)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.record(sql, args)
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.sets) == 0 {
		return nil, fmt.Errorf("unexpected query: %s", sql)
	}
	r := db.sets[0]
	db.sets = db.sets[1:]
	return r, nil
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.record(sql, args)
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.rows) == 0 {
		return fakeRow{err: fmt.Errorf("unexpected query: %s", sql)}
	}
	r := db.rows[0]
	db.rows = db.rows[1:]
	return r
}

func (db *fakeDB) callCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.calls)
}

type fakeRow struct {
	vals []any
	err  error
}

func row(vals ...any) fakeRow { return fakeRow{vals: vals} }

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.vals, dest)
}

func assign(vals, dest []any) error {
	if len(vals) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(vals), len(dest))
	}
	for i, v := range vals {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

// fakeRows implements pgx.Rows over fixed values.
type fakeRows struct {
	data [][]any
	i    int
}

func rowSet(data ...[]any) *fakeRows { return &fakeRows{data: data} }

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.i-1], nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error { return assign(r.data[r.i-1], dest) }

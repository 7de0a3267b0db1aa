// Package pgxtest provides in-memory stand-ins for the pgx query surface so
// stores can be tested without a database.
package pgxtest

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"personastudio/internal/infra"
)

type SimpleRow struct {
	scan func(dest ...any) error
}

func NewSimpleRow(scanner func(dest ...any) error) SimpleRow {
	return SimpleRow{scan: scanner}
}

// ValuesRow scans the given values into the destinations in order.
func ValuesRow(values ...any) SimpleRow {
	return SimpleRow{scan: func(dest ...any) error { return Assign(dest, values...) }}
}

// ErrRow fails every Scan with err.
func ErrRow(err error) SimpleRow {
	return SimpleRow{scan: func(...any) error { return err }}
}

func (r SimpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type TestRowsBase struct{}

func (TestRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (TestRowsBase) Conn() *pgx.Conn { return nil }

func (TestRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (TestRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (TestRowsBase) RawValues() [][]byte { return nil }

// Rows iterates over fixed value tuples.
type Rows struct {
	TestRowsBase
	data   [][]any
	pos    int
	closed bool
	err    error
}

func NewRows(data ...[]any) *Rows {
	return &Rows{data: data}
}

func (r *Rows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.pos == 0 || r.pos > len(r.data) {
		return fmt.Errorf("scan called without a current row")
	}
	return Assign(dest, r.data[r.pos-1]...)
}

func (r *Rows) Err() error { return r.err }

func (r *Rows) Close() { r.closed = true }

// Assign copies values into pointer destinations. Types must match exactly.
func Assign(dest []any, values ...any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		if values[i] == nil {
			dv.Elem().Set(reflect.Zero(dv.Elem().Type()))
			continue
		}
		vv := reflect.ValueOf(values[i])
		if !vv.Type().AssignableTo(dv.Elem().Type()) {
			return fmt.Errorf("scan: cannot assign %s to %s", vv.Type(), dv.Elem().Type())
		}
		dv.Elem().Set(vv)
	}
	return nil
}

// Call records one statement seen by Executor.
type Call struct {
	Marker string
	Query  string
	Args   []any
}

// Executor implements infra.SQLExecutor with pluggable responses. Statements
// must carry a valid marker, as they must for the real runner.
type Executor struct {
	ExecFunc  func(query string, args []any) (pgconn.CommandTag, error)
	RowFunc   func(query string, args []any) pgx.Row
	QueryFunc func(query string, args []any) (pgx.Rows, error)

	mu    sync.Mutex
	calls []Call
}

func (e *Executor) record(query string, args []any) error {
	marker, _, err := infra.ExtractMarker(query)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.calls = append(e.calls, Call{Marker: marker, Query: query, Args: append([]any(nil), args...)})
	e.mu.Unlock()
	return nil
}

func (e *Executor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if err := e.record(query, args); err != nil {
		return pgconn.CommandTag{}, err
	}
	if e.ExecFunc == nil {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return e.ExecFunc(query, args)
}

func (e *Executor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	if err := e.record(query, args); err != nil {
		return ErrRow(err)
	}
	if e.RowFunc == nil {
		return SimpleRow{}
	}
	return e.RowFunc(query, args)
}

func (e *Executor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	if err := e.record(query, args); err != nil {
		return nil, err
	}
	if e.QueryFunc == nil {
		return NewRows(), nil
	}
	return e.QueryFunc(query, args)
}

// Calls returns a copy of the recorded statements.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

var _ infra.SQLExecutor = (*Executor)(nil)

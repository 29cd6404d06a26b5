// Package sqlxadapter implements the adapter boundary on top of
// github.com/jmoiron/sqlx. It works with any sqlx execution handle, so the
// same adapter type serves both a DB and a transaction.
package sqlxadapter

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Adapter runs statements on a sqlx handle. Query results are materialized
// into []map[string]any before the handle is released, so shaped results
// never hold a row cursor open.
type Adapter struct {
	handle sqlx.ExtContext
	hook   func(error) error
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithExceptionHook replaces the default OnException behaviour. The hook
// receives every database error and its return value is what callers see.
func WithExceptionHook(hook func(error) error) Option {
	return func(a *Adapter) {
		a.hook = hook
	}
}

// New returns an Adapter over a sqlx execution handle. Both *sqlx.DB and
// *sqlx.Tx satisfy the handle interface.
func New(handle sqlx.ExtContext, opts ...Option) *Adapter {
	a := &Adapter{handle: handle}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute runs a statement for its effect and returns the sql.Result as the
// raw result.
func (a *Adapter) Execute(ctx context.Context, sqlStr string, args []any) (any, error) {
	result, err := a.handle.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Query runs a statement and returns all of its rows as []map[string]any.
func (a *Adapter) Query(ctx context.Context, sqlStr string, args []any) (any, error) {
	rows, err := a.handle.QueryxContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ResultOne returns the first row of a query result. It returns
// sql.ErrNoRows when the result is empty.
func (a *Adapter) ResultOne(raw any) (map[string]any, error) {
	rows, err := a.rowsOf(raw)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return rows[0], nil
}

// ResultMany returns all rows of a query result.
func (a *Adapter) ResultMany(raw any) ([]map[string]any, error) {
	return a.rowsOf(raw)
}

// ResultAffected returns the affected row count of an execute result.
func (a *Adapter) ResultAffected(raw any) (int64, error) {
	result, ok := raw.(sql.Result)
	if !ok {
		return 0, fmt.Errorf("affected count needs an execute result, got %T", raw)
	}
	return result.RowsAffected()
}

// ResultRaw hands the raw result back untouched.
func (a *Adapter) ResultRaw(raw any) any {
	return raw
}

// OnException applies the installed hook, or returns the error unchanged
// when no hook is installed.
func (a *Adapter) OnException(err error) error {
	if a.hook != nil {
		return a.hook(err)
	}
	return err
}

func (a *Adapter) rowsOf(raw any) ([]map[string]any, error) {
	rows, ok := raw.([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("row shaping needs a query result, got %T", raw)
	}
	return rows, nil
}

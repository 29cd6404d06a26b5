// Package adapter defines the boundary between the template assembly core
// and a concrete database library. The core resolves a statement to one
// Execute or Query call plus one result shaping call; everything a driver
// needs beyond that lives behind this interface.
package adapter

import (
	"context"
	"fmt"
)

// Adapter executes assembled SQL and shapes raw results. Implementations
// wrap a database handle; the core never opens or pools connections itself.
//
// Execute and Query return an opaque raw result. The ResultOne, ResultMany,
// ResultAffected and ResultRaw methods are handed that same value back to
// shape, so an implementation is free to choose whatever raw representation
// suits its database library.
type Adapter interface {
	// Execute runs a statement for its effect.
	Execute(ctx context.Context, sql string, args []any) (any, error)

	// Query runs a statement that produces rows.
	Query(ctx context.Context, sql string, args []any) (any, error)

	// ResultOne shapes a raw query result into its first row.
	ResultOne(raw any) (map[string]any, error)

	// ResultMany shapes a raw query result into all of its rows.
	ResultMany(raw any) ([]map[string]any, error)

	// ResultAffected shapes a raw execute result into an affected row count.
	ResultAffected(raw any) (int64, error)

	// ResultRaw hands back the raw result untouched.
	ResultRaw(raw any) any

	// OnException is called exactly once with any error produced by the
	// methods above before it is returned to the caller. The returned error
	// replaces the original; returning the argument unchanged is valid.
	OnException(err error) error
}

// Error wraps a database failure with the adapter operation that produced
// it. Adapters return it from OnException unless a caller-installed hook
// substitutes something else.
type Error struct {
	// Op is the adapter operation, such as "query" or "execute".
	Op string
	// Err is the underlying database error.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("database error in %s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

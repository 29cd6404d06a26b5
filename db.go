package sqlvec

import (
	"context"
	"fmt"
	"sync"

	"github.com/sqlvec/sqlvec/adapter"
)

// DB couples the assembly engine to an adapter. It holds no connection
// state of its own; the adapter owns the database handle.
type DB struct {
	adapter adapter.Adapter
}

// NewDB returns a DB running statements through the given adapter. A nil
// adapter is allowed; runs then fall back to the call-site adapter or the
// process default.
func NewDB(a adapter.Adapter) *DB {
	return &DB{adapter: a}
}

// Adapter returns the adapter the DB runs statements through.
func (db *DB) Adapter() adapter.Adapter {
	return db.adapter
}

var defaultAdapterMutex sync.RWMutex
var defaultAdapter adapter.Adapter

// SetDefaultAdapter installs the process-wide fallback adapter used when
// neither the DB nor the call site supplies one. It is meant to be set once
// at startup.
func SetDefaultAdapter(a adapter.Adapter) {
	defaultAdapterMutex.Lock()
	defaultAdapter = a
	defaultAdapterMutex.Unlock()
}

// DefaultAdapter returns the process-wide fallback adapter, or nil.
func DefaultAdapter() adapter.Adapter {
	defaultAdapterMutex.RLock()
	defer defaultAdapterMutex.RUnlock()
	return defaultAdapter
}

// Run assembles the statement against the parameter data and executes it.
// The merged options select the command (query or execute) and the result
// shape; the adapter is chosen from the call site, then the DB, then the
// process default. Every adapter error passes once through the adapter's
// OnException hook, wrapped in an [adapter.Error] naming the operation.
func (db *DB) Run(ctx context.Context, stmt *Statement, params map[string]any, opts ...Option) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	o := newOptions(stmt.defaults, opts)

	adp := o.Adapter
	if adp == nil {
		adp = db.adapter
	}
	if adp == nil {
		adp = DefaultAdapter()
	}
	if adp == nil {
		return nil, fmt.Errorf("cannot run statement: no adapter configured")
	}

	sv, err := stmt.bind(params, o)
	if err != nil {
		return nil, err
	}

	var raw any
	var op string
	switch o.Command {
	case CommandExecute:
		op = "execute"
		raw, err = adp.Execute(ctx, sv.SQL, sv.Values)
	default:
		op = "query"
		raw, err = adp.Query(ctx, sv.SQL, sv.Values)
	}
	if err != nil {
		return nil, adp.OnException(&adapter.Error{Op: op, Err: err})
	}

	switch o.Result {
	case ResultOne:
		row, err := adp.ResultOne(raw)
		if err != nil {
			return nil, adp.OnException(&adapter.Error{Op: "one", Err: err})
		}
		return row, nil
	case ResultMany:
		rows, err := adp.ResultMany(raw)
		if err != nil {
			return nil, adp.OnException(&adapter.Error{Op: "many", Err: err})
		}
		return rows, nil
	case ResultAffected:
		n, err := adp.ResultAffected(raw)
		if err != nil {
			return nil, adp.OnException(&adapter.Error{Op: "affected", Err: err})
		}
		return n, nil
	}
	return adp.ResultRaw(raw), nil
}

// Runner is a statement bound to a DB, callable like a function. The host
// program binds it under whatever name it chooses.
type Runner func(ctx context.Context, params map[string]any, opts ...Option) (any, error)

// Runner returns a callable that runs the statement on the given DB.
func (s *Statement) Runner(db *DB) Runner {
	return func(ctx context.Context, params map[string]any, opts ...Option) (any, error) {
		return db.Run(ctx, s, params, opts...)
	}
}

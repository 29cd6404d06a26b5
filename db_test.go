package sqlvec_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlvec/sqlvec"
	"github.com/sqlvec/sqlvec/adapter"
)

// fakeAdapter records the calls a run makes and plays back canned results.
type fakeAdapter struct {
	executed   []recordedCall
	queried    []recordedCall
	rows       []map[string]any
	affected   int64
	err        error
	exceptions []error
}

type recordedCall struct {
	sql  string
	args []any
}

func (f *fakeAdapter) Execute(ctx context.Context, sql string, args []any) (any, error) {
	f.executed = append(f.executed, recordedCall{sql: sql, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return f.affected, nil
}

func (f *fakeAdapter) Query(ctx context.Context, sql string, args []any) (any, error) {
	f.queried = append(f.queried, recordedCall{sql: sql, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeAdapter) ResultOne(raw any) (map[string]any, error) {
	rows := raw.([]map[string]any)
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	return rows[0], nil
}

func (f *fakeAdapter) ResultMany(raw any) ([]map[string]any, error) {
	return raw.([]map[string]any), nil
}

func (f *fakeAdapter) ResultAffected(raw any) (int64, error) {
	return raw.(int64), nil
}

func (f *fakeAdapter) ResultRaw(raw any) any {
	return raw
}

func (f *fakeAdapter) OnException(err error) error {
	f.exceptions = append(f.exceptions, err)
	return err
}

func TestRunDefaultsToQueryRaw(t *testing.T) {
	fake := &fakeAdapter{rows: []map[string]any{{"id": 1}}}
	db := sqlvec.NewDB(fake)
	stmt := sqlvec.MustPrepare("SELECT * FROM t WHERE id = :id")

	out, err := db.Run(nil, stmt, sqlvec.M{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": 1}}, out)

	require.Len(t, fake.queried, 1)
	assert.Empty(t, fake.executed)
	assert.Equal(t, "SELECT * FROM t WHERE id = ?", fake.queried[0].sql)
	assert.Equal(t, []any{1}, fake.queried[0].args)
}

func TestRunExecute(t *testing.T) {
	fake := &fakeAdapter{affected: 3}
	db := sqlvec.NewDB(fake)
	stmt := sqlvec.MustPrepare("DELETE FROM t WHERE org = :org")

	out, err := db.Run(nil, stmt, sqlvec.M{"org": "x"},
		sqlvec.WithCommand(sqlvec.CommandExecute),
		sqlvec.WithResult(sqlvec.ResultAffected))
	require.NoError(t, err)
	assert.Equal(t, int64(3), out)

	require.Len(t, fake.executed, 1)
	assert.Empty(t, fake.queried)
}

func TestRunResultShapes(t *testing.T) {
	rows := []map[string]any{{"id": 1}, {"id": 2}}
	fake := &fakeAdapter{rows: rows}
	db := sqlvec.NewDB(fake)
	stmt := sqlvec.MustPrepare("SELECT * FROM t")

	out, err := db.Run(nil, stmt, nil, sqlvec.WithResult(sqlvec.ResultOne))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 1}, out)

	out, err = db.Run(nil, stmt, nil, sqlvec.WithResult(sqlvec.ResultMany))
	require.NoError(t, err)
	assert.Equal(t, rows, out)
}

func TestRunHeaderDefaultsAndOverride(t *testing.T) {
	qs, err := sqlvec.LoadString("-- :name wipe :! :n\nDELETE FROM t WHERE org = :org")
	require.NoError(t, err)

	fake := &fakeAdapter{affected: 2}
	db := sqlvec.NewDB(fake)

	// Header tokens make this an execute returning the affected count.
	out, err := db.Run(nil, qs["wipe"], sqlvec.M{"org": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out)
	require.Len(t, fake.executed, 1)

	// The call site overrides the header.
	_, err = db.Run(nil, qs["wipe"], sqlvec.M{"org": "x"},
		sqlvec.WithCommand(sqlvec.CommandQuery), sqlvec.WithResult(sqlvec.ResultRaw))
	require.NoError(t, err)
	require.Len(t, fake.queried, 1)
}

func TestRunErrorPassesThroughOnException(t *testing.T) {
	boom := errors.New("boom")
	fake := &fakeAdapter{err: boom}
	db := sqlvec.NewDB(fake)
	stmt := sqlvec.MustPrepare("SELECT * FROM t")

	_, err := db.Run(nil, stmt, nil)
	require.Error(t, err)

	var aerr *adapter.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "query", aerr.Op)
	assert.ErrorIs(t, err, boom)
	// The hook saw the error exactly once.
	require.Len(t, fake.exceptions, 1)
	assert.Same(t, err, fake.exceptions[0])
}

func TestRunBindErrorSkipsAdapter(t *testing.T) {
	fake := &fakeAdapter{}
	db := sqlvec.NewDB(fake)
	stmt := sqlvec.MustPrepare("SELECT * FROM t WHERE id = :id")

	_, err := db.Run(nil, stmt, sqlvec.M{})
	assert.ErrorIs(t, err, sqlvec.ErrParameterMismatch)
	assert.Empty(t, fake.queried)
	assert.Empty(t, fake.executed)
	assert.Empty(t, fake.exceptions)
}

func TestRunAdapterSelection(t *testing.T) {
	stmt := sqlvec.MustPrepare("SELECT 1")

	// No adapter anywhere.
	empty := sqlvec.NewDB(nil)
	_, err := empty.Run(nil, stmt, nil)
	assert.EqualError(t, err, "cannot run statement: no adapter configured")

	// The process default fills in.
	fallback := &fakeAdapter{}
	sqlvec.SetDefaultAdapter(fallback)
	defer sqlvec.SetDefaultAdapter(nil)
	_, err = empty.Run(nil, stmt, nil)
	require.NoError(t, err)
	assert.Len(t, fallback.queried, 1)

	// A call-site adapter beats both.
	override := &fakeAdapter{}
	dbOwn := &fakeAdapter{}
	db := sqlvec.NewDB(dbOwn)
	_, err = db.Run(nil, stmt, nil, sqlvec.WithAdapter(override))
	require.NoError(t, err)
	assert.Len(t, override.queried, 1)
	assert.Empty(t, dbOwn.queried)
}

func TestRunner(t *testing.T) {
	fake := &fakeAdapter{rows: []map[string]any{{"n": 1}}}
	db := sqlvec.NewDB(fake)
	find := sqlvec.MustPrepare("SELECT * FROM t WHERE id = :id").Runner(db)

	out, err := find(context.Background(), sqlvec.M{"id": 9})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"n": 1}}, out)
	require.Len(t, fake.queried, 1)
	assert.Equal(t, []any{9}, fake.queried[0].args)
}

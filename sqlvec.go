package sqlvec

import (
	"github.com/sqlvec/sqlvec/internal/assemble"
	"github.com/sqlvec/sqlvec/internal/eval"
	"github.com/sqlvec/sqlvec/internal/parse"
)

// M is a convenience type for parameter data. M is not a special type, any
// map with string keys can be used as parameter data.
//
// Example:
//
//	stmt := sqlvec.MustPrepare("UPDATE people SET name = :name WHERE id = :id")
//	sv, err := stmt.Bind(sqlvec.M{"name": "Fred", "id": 10})
type M = map[string]any

// Sqlvec is the output of assembling a statement: the final SQL string with
// positional placeholders and the values bound to them, in order.
//
// A Sqlvec can also be a parameter value: snippet parameters (:snip: and
// :snip*:) splice one into an enclosing template, carrying its bound values
// along.
type Sqlvec = assemble.Sqlvec

// ErrParameterMismatch reports a parameter path referenced by the template
// but absent from the parameter data. Binding fails before any output is
// produced.
var ErrParameterMismatch = assemble.ErrParameterMismatch

// ErrExpressionCompile reports a template expression that cannot be
// compiled. The failure is cached alongside successful compilations, so an
// expression that fails once fails identically on every later use.
var ErrExpressionCompile = eval.ErrCompile

// Statement is a prepared template ready to be bound or run. Statements are
// immutable after Prepare and safe for concurrent use.
type Statement struct {
	// name is the definition name when the statement came from a loaded
	// definition file, otherwise empty.
	name string
	// doc is the definition's :doc text, if any.
	doc string
	// meta is the definition's :meta object, if any.
	meta map[string]any
	// fragments is the parsed template.
	fragments []parse.Fragment
	// defaults are the definition header's option defaults. They sit
	// between the package defaults and the call-site options.
	defaults []Option
}

// Prepare parses template text and returns a [Statement].
func Prepare(src string) (*Statement, error) {
	pt, err := parse.NewParser().Parse(src)
	if err != nil {
		return nil, err
	}
	return &Statement{fragments: pt.Fragments}, nil
}

// MustPrepare is the same as [Prepare] except that it panics on error.
func MustPrepare(src string) *Statement {
	s, err := Prepare(src)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the definition name the statement was loaded under, or the
// empty string for statements built with [Prepare].
func (s *Statement) Name() string {
	return s.name
}

// Doc returns the definition's documentation text, if any.
func (s *Statement) Doc() string {
	return s.doc
}

// Meta returns the definition's metadata object, or nil.
func (s *Statement) Meta() map[string]any {
	return s.meta
}

// Bind assembles the statement against parameter data and returns the
// resulting [Sqlvec]. Embedded expressions are evaluated against the
// parameter data and the merged options; conditional regions that do not
// apply vanish from the output. The same statement, data and options always
// produce the same Sqlvec.
func (s *Statement) Bind(params map[string]any, opts ...Option) (*Sqlvec, error) {
	o := newOptions(s.defaults, opts)
	return s.bind(params, o)
}

func (s *Statement) bind(params map[string]any, o *Options) (*Sqlvec, error) {
	ao := o.assembleOptions()
	flat, err := assemble.Flatten(s.fragments, params, ao)
	if err != nil {
		return nil, err
	}
	return assemble.Bind(flat, params, ao)
}

// String returns a representation of the parsed template, for debugging.
func (s *Statement) String() string {
	return (&parse.ParsedTemplate{Fragments: s.fragments}).String()
}

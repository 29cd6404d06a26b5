package assemble

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/sqlvec/sqlvec/internal/eval"
	"github.com/sqlvec/sqlvec/internal/parse"
)

// ErrParameterMismatch is wrapped by every bind failure caused by a
// parameter path that is absent from the parameter data.
var ErrParameterMismatch = errors.New("parameter mismatch")

// Sqlvec is the output of template assembly: a SQL string with positional
// placeholders and the values bound to them, in placeholder order.
//
// A Sqlvec can also appear as a value inside parameter data, where snippet
// parameters splice it into an enclosing template.
type Sqlvec struct {
	SQL    string
	Values []any
}

// Bind substitutes every parameter fragment of a flattened template and
// returns the final Sqlvec. All parameter paths are validated up front,
// before any substitution begins, so a missing parameter never produces
// partial output.
func Bind(frags []parse.Fragment, params map[string]any, opts *Options) (sv *Sqlvec, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot bind parameters: %w", err)
		}
	}()

	for _, f := range frags {
		if p, ok := f.(*parse.Param); ok {
			if _, ok := eval.Lookup(params, p.Path); !ok {
				return nil, fmt.Errorf("%w: %q not found in parameter data", ErrParameterMismatch, p.Path)
			}
		}
	}

	var b sqlBuilder
	var values []any
	for _, f := range frags {
		switch f := f.(type) {
		case *parse.Text:
			b.write(f.Chunk)
		case *parse.Param:
			v, _ := eval.Lookup(params, f.Path)
			values, err = bindParam(&b, f, v, values, opts)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("internal error: unexpected fragment %T after flattening", f)
		}
	}

	return &Sqlvec{SQL: strings.TrimSpace(b.getSQL()), Values: values}, nil
}

func bindParam(b *sqlBuilder, p *parse.Param, v any, values []any, opts *Options) ([]any, error) {
	switch p.Kind {
	case parse.Value:
		b.writePlaceholder()
		return append(values, v), nil

	case parse.ValueList:
		seq, err := sequenceOf(p, v)
		if err != nil {
			return nil, err
		}
		b.writeList(len(seq), func(i int) {
			b.writePlaceholder()
		})
		return append(values, seq...), nil

	case parse.Tuple:
		seq, err := sequenceOf(p, v)
		if err != nil {
			return nil, err
		}
		b.write("(")
		b.writeList(len(seq), func(i int) {
			b.writePlaceholder()
		})
		b.write(")")
		return append(values, seq...), nil

	case parse.TupleList:
		rows, err := sequenceOf(p, v)
		if err != nil {
			return nil, err
		}
		for i, row := range rows {
			if i != 0 {
				b.write(", ")
			}
			seq, err := sequenceOf(p, row)
			if err != nil {
				return nil, err
			}
			b.write("(")
			b.writeList(len(seq), func(i int) {
				b.writePlaceholder()
			})
			b.write(")")
			values = append(values, seq...)
		}
		return values, nil

	case parse.Identifier:
		ident, err := identifierOf(p, v)
		if err != nil {
			return nil, err
		}
		b.write(opts.Quoting.QuoteIdentifier(ident))
		return values, nil

	case parse.IdentifierList:
		seq, err := sequenceOf(p, v)
		if err != nil {
			return nil, err
		}
		for i, item := range seq {
			ident, err := identifierOf(p, item)
			if err != nil {
				return nil, err
			}
			if i != 0 {
				b.write(", ")
			}
			b.write(opts.Quoting.QuoteIdentifier(ident))
		}
		return values, nil

	case parse.Raw:
		b.write(eval.Stringify(v))
		return values, nil

	case parse.RawList:
		seq, err := sequenceOf(p, v)
		if err != nil {
			return nil, err
		}
		for i, item := range seq {
			if i != 0 {
				b.write(" ")
			}
			b.write(eval.Stringify(item))
		}
		return values, nil

	case parse.Snippet:
		sv, err := snippetOf(p, v)
		if err != nil {
			return nil, err
		}
		b.write(sv.SQL)
		return append(values, sv.Values...), nil

	case parse.SnippetList:
		seq, err := sequenceOf(p, v)
		if err != nil {
			return nil, err
		}
		for i, item := range seq {
			sv, err := snippetOf(p, item)
			if err != nil {
				return nil, err
			}
			if i != 0 {
				b.write(", ")
			}
			b.write(sv.SQL)
			values = append(values, sv.Values...)
		}
		return values, nil
	}
	return nil, fmt.Errorf("internal error: unknown parameter kind %q", p.Kind)
}

// sequenceOf returns the elements of a list parameter value. Empty lists
// are rejected: there is no SQL rendering of zero placeholders, callers
// guard optional lists with a conditional region instead.
func sequenceOf(p *parse.Param, v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, fmt.Errorf("parameter %q needs a sequence, got %T", p.Path, v)
	}
	if rv.Len() == 0 {
		return nil, fmt.Errorf("parameter %q is an empty sequence", p.Path)
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func identifierOf(p *parse.Param, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q needs a string identifier, got %T", p.Path, v)
	}
	return s, nil
}

func snippetOf(p *parse.Param, v any) (*Sqlvec, error) {
	switch sv := v.(type) {
	case *Sqlvec:
		return sv, nil
	case Sqlvec:
		return &sv, nil
	}
	return nil, fmt.Errorf("parameter %q needs a sqlvec, got %T", p.Path, v)
}

// sqlBuilder is used to generate the SQL string piece by piece using the
// struct methods.
type sqlBuilder struct {
	buf bytes.Buffer
}

func (b *sqlBuilder) write(sql string) {
	b.buf.WriteString(sql)
}

func (b *sqlBuilder) writePlaceholder() {
	b.buf.WriteString("?")
}

// writeList writes out n comma separated elements using the writer to emit
// each element.
func (b *sqlBuilder) writeList(n int, writer func(i int)) {
	for i := 0; i < n; i++ {
		if i != 0 {
			b.buf.WriteString(", ")
		}
		writer(i)
	}
}

func (b *sqlBuilder) getSQL() string {
	return b.buf.String()
}

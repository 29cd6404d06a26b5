package sqlvec

import (
	"github.com/sqlvec/sqlvec/adapter"
	"github.com/sqlvec/sqlvec/internal/assemble"
)

// Quoting selects the identifier quoting style used for identifier
// parameters.
type Quoting = assemble.Quoting

const (
	QuoteOff   = assemble.QuoteOff
	QuoteANSI  = assemble.QuoteANSI
	QuoteMySQL = assemble.QuoteMySQL
	QuoteMSSQL = assemble.QuoteMSSQL
)

// Options is the merged configuration a statement is assembled and run
// with. Values merge in three layers: package defaults, then the
// statement's definition header, then the call site. Later layers win.
type Options struct {
	// Quoting is the identifier quoting style.
	Quoting Quoting
	// Command says how the statement reaches the database.
	Command Command
	// Result says how the raw adapter result is shaped.
	Result ResultShape
	// Adapter overrides the DB's adapter for a single run.
	Adapter adapter.Adapter
	// CommandOptions are free-form values that template expressions can
	// read under the "opt" root.
	CommandOptions map[string]any
}

// Option mutates an Options value. Options are applied in order.
type Option func(*Options)

// WithQuoting sets the identifier quoting style.
func WithQuoting(q Quoting) Option {
	return func(o *Options) {
		o.Quoting = q
	}
}

// WithCommand sets the command.
func WithCommand(c Command) Option {
	return func(o *Options) {
		o.Command = c
	}
}

// WithResult sets the result shape.
func WithResult(r ResultShape) Option {
	return func(o *Options) {
		o.Result = r
	}
}

// WithAdapter overrides the adapter for a single run.
func WithAdapter(a adapter.Adapter) Option {
	return func(o *Options) {
		o.Adapter = a
	}
}

// WithOption sets one free-form value readable by template expressions
// under the "opt" root.
func WithOption(key string, value any) Option {
	return func(o *Options) {
		if o.CommandOptions == nil {
			o.CommandOptions = map[string]any{}
		}
		o.CommandOptions[key] = value
	}
}

// newOptions builds the merged Options for one call: package defaults,
// then the statement's definition header defaults, then the call site.
func newOptions(defs []Option, call []Option) *Options {
	o := &Options{
		Quoting: QuoteOff,
		Command: CommandQuery,
		Result:  ResultRaw,
	}
	for _, opt := range defs {
		opt(o)
	}
	for _, opt := range call {
		opt(o)
	}
	return o
}

// assembleOptions projects the merged Options onto the assembly engine's
// option set.
func (o *Options) assembleOptions() *assemble.Options {
	return &assemble.Options{
		Quoting:     o.Quoting,
		ExprOptions: o.CommandOptions,
	}
}

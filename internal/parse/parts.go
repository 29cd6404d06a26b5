package parse

import (
	"fmt"
)

// A Fragment is one atomic unit of a parsed template. A template is
// represented as an ordered list of Fragments; the order defines both the
// output SQL order and the output value order.
type Fragment interface {
	// String returns a string representation of the fragment for debugging
	// and testing purposes.
	String() string

	// fragment is a marker method.
	fragment()
}

// Kind determines the substitution strategy for a parameter.
type Kind int

const (
	// Value binds as a single positional placeholder.
	Value Kind = iota
	// ValueList expands a sequence into comma separated placeholders.
	ValueList
	// Tuple expands a sequence into a single parenthesised placeholder group.
	Tuple
	// TupleList expands a sequence of sequences into comma separated
	// parenthesised groups.
	TupleList
	// Identifier substitutes the value inline as a quoted identifier.
	Identifier
	// IdentifierList substitutes a sequence of identifiers joined with ", ".
	IdentifierList
	// Raw substitutes the value inline as unquoted SQL text.
	Raw
	// RawList substitutes a sequence of SQL text values joined with a space.
	RawList
	// Snippet splices a pre-assembled (sql, values) pair.
	Snippet
	// SnippetList splices a sequence of (sql, values) pairs joined with ", ".
	SnippetList
)

var kindNames = map[Kind]string{
	Value:          "v",
	ValueList:      "v*",
	Tuple:          "t",
	TupleList:      "t*",
	Identifier:     "i",
	IdentifierList: "i*",
	Raw:            "sql",
	RawList:        "sql*",
	Snippet:        "snip",
	SnippetList:    "snip*",
}

func (k Kind) String() string {
	return kindNames[k]
}

// IsList reports whether the kind is a spread variant that expands over a
// sequence of values.
func (k Kind) IsList() bool {
	switch k {
	case ValueList, TupleList, IdentifierList, RawList, SnippetList:
		return true
	}
	return false
}

// Text is a fragment of literal SQL passed through to the output verbatim.
// Adjacency to neighbouring fragments is significant.
type Text struct {
	Chunk string
}

func (t *Text) String() string {
	return "Text[" + t.Chunk + "]"
}

func (t *Text) fragment() {}

// Param is a parameter placeholder. Path is a dotted lookup path into the
// parameter data supplied at bind time.
type Param struct {
	Path string
	Kind Kind
}

func (p *Param) String() string {
	return fmt.Sprintf("Param[%s:%s]", p.Kind, p.Path)
}

func (p *Param) fragment() {}

// ExprRole classifies an expression token within a conditional or computed
// region. The flattening pass groups tokens into runs using these roles; the
// token source is otherwise opaque to everything except the evaluator.
type ExprRole int

const (
	// ExprIf opens a conditional run.
	ExprIf ExprRole = iota
	// ExprElif continues a conditional run with another guarded branch.
	ExprElif
	// ExprElse continues a conditional run with an unguarded branch.
	ExprElse
	// ExprEnd closes a conditional run.
	ExprEnd
	// ExprValue is a self contained computed expression whose string result
	// is re-parsed as template source and spliced in.
	ExprValue
)

var exprRoleNames = map[ExprRole]string{
	ExprIf:    "if",
	ExprElif:  "elif",
	ExprElse:  "else",
	ExprEnd:   "end",
	ExprValue: "expr",
}

func (r ExprRole) String() string {
	return exprRoleNames[r]
}

// Expr is a raw expression token bracketing or forming a conditional or
// computed region. Src holds the expression source for ExprIf, ExprElif and
// ExprValue roles; it is empty for ExprElse and ExprEnd.
type Expr struct {
	Role ExprRole
	Src  string
}

func (e *Expr) String() string {
	if e.Src == "" {
		return fmt.Sprintf("Expr[%s]", e.Role)
	}
	return fmt.Sprintf("Expr[%s %s]", e.Role, e.Src)
}

func (e *Expr) fragment() {}

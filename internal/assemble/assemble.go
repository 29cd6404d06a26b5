// Package assemble turns a tokenized template plus caller parameter data
// into a final SQL string and an ordered list of bound values. It runs in
// two passes: Flatten evaluates embedded expression regions and splices
// their output until only literal text and parameter fragments remain, then
// Bind substitutes every parameter fragment.
package assemble

import (
	"fmt"
	"strings"

	"github.com/sqlvec/sqlvec/internal/eval"
	"github.com/sqlvec/sqlvec/internal/parse"
)

// Options carries the per-call configuration the assembly engine consults.
// It is immutable for the duration of a call.
type Options struct {
	// Quoting selects the identifier quoting style.
	Quoting Quoting
	// ExprOptions is the merged option map expressions can read under the
	// "opt" root.
	ExprOptions map[string]any
}

// Flatten walks the fragment sequence once, left to right, evaluating
// expression runs against the parameter data and splicing their results
// back in. The returned sequence contains only Text and Param fragments, in
// their original textual order. Adjacent text fragments are joined with a
// single space when neither side supplies one, so tokens from neighbouring
// fragments never collide.
func Flatten(frags []parse.Fragment, params map[string]any, opts *Options) (out []parse.Fragment, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot expand template: %w", err)
		}
	}()
	return flatten(frags, params, opts)
}

func flatten(frags []parse.Fragment, params map[string]any, opts *Options) ([]parse.Fragment, error) {
	var out []parse.Fragment
	i := 0
	for i < len(frags) {
		switch f := frags[i].(type) {
		case *parse.Text:
			appendText(&out, f.Chunk)
			i++
		case *parse.Param:
			out = append(out, f)
			i++
		case *parse.Expr:
			switch f.Role {
			case parse.ExprValue:
				sub, err := spliceValue(f.Src, params, opts)
				if err != nil {
					return nil, err
				}
				appendFragments(&out, sub)
				i++
			case parse.ExprIf:
				run, next, err := collectRun(frags, i)
				if err != nil {
					return nil, err
				}
				body, err := selectBranch(run, params, opts)
				if err != nil {
					return nil, err
				}
				if body != nil {
					sub, err := flatten(body, params, opts)
					if err != nil {
						return nil, err
					}
					appendFragments(&out, sub)
				}
				i = next
			default:
				return nil, fmt.Errorf("unexpected %q outside a conditional", f.Role)
			}
		default:
			return nil, fmt.Errorf("internal error: unknown fragment type %T", f)
		}
	}
	return out, nil
}

// spliceValue evaluates a computed expression and, when it produces output,
// re-parses the result as template source. Generated SQL may legally contain
// further parameter markers, so the result is flattened recursively.
func spliceValue(src string, params map[string]any, opts *Options) ([]parse.Fragment, error) {
	prog, err := eval.Compile(src)
	if err != nil {
		return nil, err
	}
	v, err := prog.Run(params, opts.ExprOptions)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	text := eval.Stringify(v)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	pt, err := parse.NewParser().Parse(text)
	if err != nil {
		return nil, fmt.Errorf("cannot re-parse expression result %q: %s", text, err)
	}
	return flatten(pt.Fragments, params, opts)
}

// collectRun returns the fragments of the conditional run opening at start,
// including the closing end token, and the index of the fragment after it.
// Runs nest.
func collectRun(frags []parse.Fragment, start int) ([]parse.Fragment, int, error) {
	depth := 0
	for j := start; j < len(frags); j++ {
		if ex, ok := frags[j].(*parse.Expr); ok {
			switch ex.Role {
			case parse.ExprIf:
				depth++
			case parse.ExprEnd:
				depth--
				if depth == 0 {
					return frags[start : j+1], j + 1, nil
				}
			}
		}
	}
	return nil, 0, fmt.Errorf(`conditional is missing its closing "end"`)
}

// branch is one guarded section of a conditional run. An empty condition is
// an else branch.
type branch struct {
	cond string
	body []parse.Fragment
}

// selectBranch splits a conditional run into its branches and returns the
// body of the first one whose condition evaluates truthy, or nil when none
// does. Branch conditions are only evaluated up to the winning branch.
func selectBranch(run []parse.Fragment, params map[string]any, opts *Options) ([]parse.Fragment, error) {
	branches, err := splitBranches(run)
	if err != nil {
		return nil, err
	}
	for _, br := range branches {
		if br.cond == "" {
			return br.body, nil
		}
		prog, err := eval.Compile(br.cond)
		if err != nil {
			return nil, err
		}
		v, err := prog.Run(params, opts.ExprOptions)
		if err != nil {
			return nil, err
		}
		if eval.Truthy(v) {
			return br.body, nil
		}
	}
	return nil, nil
}

func splitBranches(run []parse.Fragment) ([]branch, error) {
	open := run[0].(*parse.Expr)
	branches := []branch{{cond: open.Src}}
	seenElse := false
	depth := 1
	cur := 0
	// Skip the opening if and the trailing end.
	for _, f := range run[1 : len(run)-1] {
		if ex, ok := f.(*parse.Expr); ok {
			switch ex.Role {
			case parse.ExprIf:
				depth++
			case parse.ExprEnd:
				depth--
			case parse.ExprElif:
				if depth == 1 {
					if seenElse {
						return nil, fmt.Errorf(`"elif" after "else" in conditional`)
					}
					branches = append(branches, branch{cond: ex.Src})
					cur++
					continue
				}
			case parse.ExprElse:
				if depth == 1 {
					if seenElse {
						return nil, fmt.Errorf(`duplicate "else" in conditional`)
					}
					seenElse = true
					branches = append(branches, branch{})
					cur++
					continue
				}
			}
		}
		branches[cur].body = append(branches[cur].body, f)
	}
	return branches, nil
}

// appendText appends literal text to the output, merging it into a trailing
// text fragment. A single space is inserted when neither the existing text
// nor the new chunk supplies one at the boundary.
func appendText(out *[]parse.Fragment, chunk string) {
	if chunk == "" {
		return
	}
	if n := len(*out); n > 0 {
		if last, ok := (*out)[n-1].(*parse.Text); ok {
			if !endsWithSpace(last.Chunk) && !startsWithSpace(chunk) {
				last.Chunk += " " + chunk
			} else {
				last.Chunk += chunk
			}
			return
		}
	}
	// Copy the chunk into a fresh fragment; input fragments are shared
	// between calls and must never be mutated.
	*out = append(*out, &parse.Text{Chunk: chunk})
}

func appendFragments(out *[]parse.Fragment, frags []parse.Fragment) {
	for _, f := range frags {
		if t, ok := f.(*parse.Text); ok {
			appendText(out, t.Chunk)
			continue
		}
		*out = append(*out, f)
	}
}

func startsWithSpace(s string) bool {
	return s != "" && isSpace(rune(s[0]))
}

func endsWithSpace(s string) bool {
	return s != "" && isSpace(rune(s[len(s)-1]))
}

func isSpace(c rune) bool {
	switch c {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

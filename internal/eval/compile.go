package eval

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"
)

// ErrCompile is wrapped by every expression compilation failure. A broken
// expression is a programmer error: it is surfaced at first use and never
// retried.
var ErrCompile = errors.New("cannot compile expression")

// Program is a compiled expression ready to run against parameter data and
// options. Programs are immutable and safe for concurrent use.
type Program struct {
	src  string
	root node
}

// Src returns the canonical source the program was compiled from.
func (p *Program) Src() string {
	return p.src
}

// Run evaluates the program. It reads params and options and never mutates
// either.
func (p *Program) Run(params, options map[string]any) (v any, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot evaluate expression %q: %s", p.src, err)
		}
	}()
	env := &Env{Params: params, Options: options}
	return p.root.eval(env)
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits an expression source into tokens. The token stream doubles as
// the canonical form of the expression used for cache addressing.
func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	i := 0
	for i < len(rs) {
		c := rs[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(rs) {
				r := rs[i]
				if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
					i++
					continue
				}
				// Parameter names use kebab case, so a dash glued to a
				// letter stays inside the name. Subtraction needs spaces
				// around the operator.
				if r == '-' && i+1 < len(rs) && (unicode.IsLetter(rs[i+1]) || rs[i+1] == '_') {
					i += 2
					continue
				}
				break
			}
			toks = append(toks, token{kind: tokenIdent, text: string(rs[start:i]), pos: start})
		case unicode.IsDigit(c):
			start := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			toks = append(toks, token{kind: tokenNumber, text: string(rs[start:i]), pos: start})
		case c == '\'' || c == '"':
			quote := c
			i++
			start := i
			for i < len(rs) && rs[i] != quote {
				i++
			}
			if i >= len(rs) {
				return nil, fmt.Errorf("missing closing quote at position %d", start)
			}
			toks = append(toks, token{kind: tokenString, text: string(rs[start:i]), pos: start})
			i++
		default:
			two := ""
			if i+1 < len(rs) {
				two = string(rs[i : i+2])
			}
			switch two {
			case "==", "!=", "<=", ">=", "&&", "||":
				toks = append(toks, token{kind: tokenOp, text: two, pos: i})
				i += 2
				continue
			}
			switch c {
			case '!', '<', '>', '+', '-', '*', '/', '%', '(', ')', '.':
				toks = append(toks, token{kind: tokenOp, text: string(c), pos: i})
				i++
			default:
				return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
			}
		}
	}
	toks = append(toks, token{kind: tokenEOF, pos: len(rs)})
	return toks, nil
}

// canonical reconstructs a whitespace-normalized source from the token
// stream so that formatting differences address the same cache slot.
func canonical(toks []token) string {
	var parts []string
	for _, t := range toks {
		switch t.kind {
		case tokenEOF:
		case tokenString:
			parts = append(parts, "'"+t.text+"'")
		default:
			parts = append(parts, t.text)
		}
	}
	return strings.Join(parts, " ")
}

func hashKey(canonicalSrc string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(canonicalSrc))
	return h.Sum64()
}

// exprParser is a recursive descent parser over the token stream with the
// usual precedence ladder: || < && < comparison < additive < multiplicative
// < unary < primary.
type exprParser struct {
	toks []token
	pos  int
}

func (p *exprParser) peek() token {
	return p.toks[p.pos]
}

func (p *exprParser) next() token {
	t := p.toks[p.pos]
	if p.toks[p.pos].kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *exprParser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokenOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.next()
			return op, true
		}
	}
	return "", false
}

func (p *exprParser) parseExpr() (node, error) {
	return p.parseOr()
}

func (p *exprParser) parseOr() (node, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("||")
		if !ok {
			return lhs, nil
		}
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: op, lhs: lhs, rhs: rhs}
	}
}

func (p *exprParser) parseAnd() (node, error) {
	lhs, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("&&")
		if !ok {
			return lhs, nil
		}
		rhs, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: op, lhs: lhs, rhs: rhs}
	}
}

func (p *exprParser) parseComparison() (node, error) {
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := p.acceptOp("==", "!=", "<=", ">=", "<", ">")
	if !ok {
		return lhs, nil
	}
	rhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: op, lhs: lhs, rhs: rhs}, nil
}

func (p *exprParser) parseAdditive() (node, error) {
	lhs, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return lhs, nil
		}
		rhs, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: op, lhs: lhs, rhs: rhs}
	}
}

func (p *exprParser) parseMultiplicative() (node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/", "%")
		if !ok {
			return lhs, nil
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: op, lhs: lhs, rhs: rhs}
	}
}

func (p *exprParser) parseUnary() (node, error) {
	if op, ok := p.acceptOp("!", "-"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePrimary()
}

// builtins is the closed set of callable functions.
var builtins = map[string]bool{
	"len":   true,
	"str":   true,
	"lower": true,
	"upper": true,
}

func (p *exprParser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokenNumber:
		p.next()
		if strings.Contains(t.text, ".") {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", t.text)
			}
			return &litNode{val: f}, nil
		}
		i, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.text)
		}
		return &litNode{val: i}, nil
	case tokenString:
		p.next()
		return &litNode{val: t.text}, nil
	case tokenIdent:
		p.next()
		switch t.text {
		case "true":
			return &litNode{val: true}, nil
		case "false":
			return &litNode{val: false}, nil
		case "nil", "null":
			return &litNode{val: nil}, nil
		}
		if builtins[t.text] {
			if _, ok := p.acceptOp("("); !ok {
				return nil, fmt.Errorf("expected %q after %q", "(", t.text)
			}
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, ok := p.acceptOp(")"); !ok {
				return nil, fmt.Errorf("missing %q after arguments of %q", ")", t.text)
			}
			return &callNode{fn: t.text, arg: arg}, nil
		}
		segs := []string{t.text}
		for {
			if _, ok := p.acceptOp("."); !ok {
				break
			}
			seg := p.peek()
			if seg.kind != tokenIdent {
				return nil, fmt.Errorf("expected name after %q", ".")
			}
			p.next()
			segs = append(segs, seg.text)
		}
		return &pathNode{segs: segs}, nil
	}
	if _, ok := p.acceptOp("("); ok {
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, ok := p.acceptOp(")"); !ok {
			return nil, fmt.Errorf("missing closing %q", ")")
		}
		return inner, nil
	}
	if t.kind == tokenEOF {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q", t.text)
}

// compile parses a token stream into a Program. Used by the cache; callers
// go through Compile.
func compile(canonicalSrc string, toks []token) (*Program, error) {
	p := &exprParser{toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, fmt.Errorf("%w %q: %s", ErrCompile, canonicalSrc, err)
	}
	if p.peek().kind != tokenEOF {
		return nil, fmt.Errorf("%w %q: unexpected trailing %q", ErrCompile, canonicalSrc, p.peek().text)
	}
	return &Program{src: canonicalSrc, root: root}, nil
}

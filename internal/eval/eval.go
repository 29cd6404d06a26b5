// Package eval implements the restricted expression language embedded in
// template conditionals and computed regions. The grammar is closed: boolean
// and arithmetic operators, comparisons, string concatenation, literal
// values, dotted parameter lookups and a handful of builtins. Expressions
// are compiled at most once per distinct source and cached process-wide.
package eval

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Env carries the data an expression may read. Programs must be pure with
// respect to it: both maps are read, never written.
type Env struct {
	// Params is the caller supplied parameter data. Bare identifier paths
	// resolve against it.
	Params map[string]any
	// Options is the merged option map, reachable under the "opt" root.
	Options map[string]any
}

type node interface {
	eval(env *Env) (any, error)
}

type litNode struct {
	val any
}

func (n *litNode) eval(env *Env) (any, error) {
	return n.val, nil
}

// pathNode resolves a dotted lookup path. A missing path yields nil rather
// than an error so conditionals can probe for optional parameters.
type pathNode struct {
	segs []string
}

func (n *pathNode) eval(env *Env) (any, error) {
	segs := n.segs
	data := env.Params
	switch segs[0] {
	case "params":
		if len(segs) > 1 {
			segs = segs[1:]
		}
	case "opt", "options":
		if len(segs) > 1 {
			data = env.Options
			segs = segs[1:]
		}
	}
	v, _ := lookupSegments(data, segs)
	return v, nil
}

type unaryNode struct {
	op      string
	operand node
}

func (n *unaryNode) eval(env *Env) (any, error) {
	v, err := n.operand.eval(env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "!":
		return !Truthy(v), nil
	case "-":
		if i, ok := toInt(v); ok {
			return -i, nil
		}
		if f, ok := toFloat(v); ok {
			return -f, nil
		}
		return nil, fmt.Errorf("cannot negate %T value", v)
	}
	return nil, fmt.Errorf("internal error: unknown unary operator %q", n.op)
}

type binaryNode struct {
	op       string
	lhs, rhs node
}

func (n *binaryNode) eval(env *Env) (any, error) {
	// Logical operators short-circuit.
	switch n.op {
	case "&&":
		l, err := n.lhs.eval(env)
		if err != nil {
			return nil, err
		}
		if !Truthy(l) {
			return false, nil
		}
		r, err := n.rhs.eval(env)
		if err != nil {
			return nil, err
		}
		return Truthy(r), nil
	case "||":
		l, err := n.lhs.eval(env)
		if err != nil {
			return nil, err
		}
		if Truthy(l) {
			return true, nil
		}
		r, err := n.rhs.eval(env)
		if err != nil {
			return nil, err
		}
		return Truthy(r), nil
	}

	l, err := n.lhs.eval(env)
	if err != nil {
		return nil, err
	}
	r, err := n.rhs.eval(env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return looseEqual(l, r), nil
	case "!=":
		return !looseEqual(l, r), nil
	case "<", "<=", ">", ">=":
		return compare(n.op, l, r)
	case "+":
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs, nil
			}
		}
		fallthrough
	case "-", "*", "/", "%":
		return arith(n.op, l, r)
	}
	return nil, fmt.Errorf("internal error: unknown operator %q", n.op)
}

type callNode struct {
	fn  string
	arg node
}

func (n *callNode) eval(env *Env) (any, error) {
	v, err := n.arg.eval(env)
	if err != nil {
		return nil, err
	}
	switch n.fn {
	case "len":
		return lenOf(v)
	case "str":
		return Stringify(v), nil
	case "lower":
		return strings.ToLower(Stringify(v)), nil
	case "upper":
		return strings.ToUpper(Stringify(v)), nil
	}
	return nil, fmt.Errorf("internal error: unknown function %q", n.fn)
}

// Truthy reports whether a value counts as true in a conditional: nil and
// false are false, everything else is true.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// Stringify renders an expression result as template text. Strings pass
// through unchanged, nil renders as the empty string.
func Stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	switch v := v.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// looseEqual compares values with numeric coercion so int and int64
// parameter values compare equal to literals.
func looseEqual(l, r any) bool {
	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			return lf == rf
		}
		return false
	}
	return reflect.DeepEqual(l, r)
}

func compare(op string, l, r any) (any, error) {
	if lf, lok := toFloat(l); lok {
		rf, rok := toFloat(r)
		if !rok {
			return nil, fmt.Errorf("cannot compare %T with %T", l, r)
		}
		switch op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return nil, fmt.Errorf("cannot compare %T with %T", l, r)
}

func arith(op string, l, r any) (any, error) {
	li, lok := toInt(l)
	ri, rok := toInt(r)
	if lok && rok {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "/":
			if ri == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return li / ri, nil
		case "%":
			if ri == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return li % ri, nil
		}
	}
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %q needs numeric operands, got %T and %T", op, l, r)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		return nil, fmt.Errorf("operator %q needs integer operands", op)
	}
	return nil, fmt.Errorf("internal error: unknown operator %q", op)
}

func lenOf(v any) (any, error) {
	if v == nil {
		return int64(0), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return int64(rv.Len()), nil
	}
	return nil, fmt.Errorf("len of %T value", v)
}

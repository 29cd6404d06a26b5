package sqlvec

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrUnreadableSource reports a definition source that could not be read.
var ErrUnreadableSource = errors.New("cannot read statement source")

// Queries maps definition names to prepared statements. Loading returns the
// map explicitly; nothing is registered anywhere as a side effect.
type Queries map[string]*Statement

// LoadFile reads a definition file and prepares every statement in it.
func LoadFile(path string) (Queries, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreadableSource, err)
	}
	qs, err := LoadString(string(data))
	if err != nil {
		return nil, fmt.Errorf("cannot load %q: %s", path, err)
	}
	return qs, nil
}

// Load reads definitions from a reader and prepares every statement.
func Load(r io.Reader) (Queries, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreadableSource, err)
	}
	return LoadString(string(data))
}

// LoadString prepares every statement in definition source text.
//
// A definition starts with a header comment naming it, optionally followed
// by command and result tokens, documentation and metadata:
//
//	-- :name find-user :? :1
//	-- :doc Find a user by id.
//	-- :meta {"owner": "accounts"}
//	SELECT * FROM users WHERE id = :id
//
// The body runs to the next :name header or the end of input. Header
// command and result tokens become the statement's option defaults, sitting
// between the package defaults and the call site.
func LoadString(src string) (Queries, error) {
	qs := Queries{}
	var cur *definition

	scanner := bufio.NewScanner(strings.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		directive, rest, ok := headerDirective(line)
		if !ok {
			if cur == nil {
				if strings.TrimSpace(line) != "" && !strings.HasPrefix(strings.TrimSpace(line), "--") {
					return nil, fmt.Errorf("line %d: statement body before a :name header", lineNum)
				}
				continue
			}
			cur.body = append(cur.body, line)
			continue
		}

		switch directive {
		case "name":
			if cur != nil {
				if err := cur.finish(qs); err != nil {
					return nil, err
				}
			}
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				return nil, fmt.Errorf("line %d: missing name in :name header", lineNum)
			}
			cur = &definition{name: fields[0], tokens: fields[1:], line: lineNum}
		case "doc":
			if cur == nil {
				return nil, fmt.Errorf("line %d: :doc before a :name header", lineNum)
			}
			cur.doc = append(cur.doc, rest)
		case "meta":
			if cur == nil {
				return nil, fmt.Errorf("line %d: :meta before a :name header", lineNum)
			}
			meta := map[string]any{}
			if err := json.Unmarshal([]byte(rest), &meta); err != nil {
				return nil, fmt.Errorf("line %d: cannot parse :meta object: %s", lineNum, err)
			}
			cur.meta = meta
		default:
			// An unknown directive is an ordinary comment in the body.
			if cur != nil {
				cur.body = append(cur.body, line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreadableSource, err)
	}

	if cur != nil {
		if err := cur.finish(qs); err != nil {
			return nil, err
		}
	}
	return qs, nil
}

// headerDirective splits a "-- :directive rest" comment line. The bool is
// false for any line that is not a directive comment.
func headerDirective(line string) (directive, rest string, ok bool) {
	t := strings.TrimSpace(line)
	if !strings.HasPrefix(t, "-- :") {
		return "", "", false
	}
	t = t[len("-- :"):]
	if i := strings.IndexByte(t, ' '); i >= 0 {
		return t[:i], strings.TrimSpace(t[i:]), true
	}
	return t, "", true
}

type definition struct {
	name   string
	tokens []string
	doc    []string
	meta   map[string]any
	body   []string
	line   int
}

// finish prepares the accumulated definition and inserts it into the map.
func (d *definition) finish(qs Queries) error {
	body := strings.TrimSpace(strings.Join(d.body, "\n"))
	if body == "" {
		return fmt.Errorf("definition %q has no body", d.name)
	}
	if _, ok := qs[d.name]; ok {
		return fmt.Errorf("duplicate definition %q", d.name)
	}

	stmt, err := Prepare(body)
	if err != nil {
		return fmt.Errorf("definition %q: %s", d.name, err)
	}
	stmt.name = d.name
	stmt.doc = strings.Join(d.doc, "\n")
	stmt.meta = d.meta
	stmt.defaults = headerOptions(d.tokens)

	qs[d.name] = stmt
	return nil
}

// headerOptions resolves header tokens to option defaults. A token matching
// a registered command alias selects the command, one matching a result
// alias selects the result shape. Unknown tokens are ignored, leaving the
// permissive package defaults in place.
func headerOptions(tokens []string) []Option {
	var opts []Option
	for _, tok := range tokens {
		tok = strings.TrimPrefix(tok, ":")
		if c, ok := lookupCommand(tok); ok {
			opts = append(opts, WithCommand(c))
			continue
		}
		if r, ok := lookupResult(tok); ok {
			opts = append(opts, WithResult(r))
		}
	}
	return opts
}

package eval

import (
	"errors"
	"sync"
	"testing"

	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type EvalSuite struct{}

var _ = Suite(&EvalSuite{})

func run(c *C, src string, params, options map[string]any) any {
	prog, err := Compile(src)
	c.Assert(err, IsNil, Commentf("compile %q", src))
	v, err := prog.Run(params, options)
	c.Assert(err, IsNil, Commentf("run %q", src))
	return v
}

func (s *EvalSuite) TestRun(c *C) {
	var tests = []struct {
		summary  string
		src      string
		params   map[string]any
		options  map[string]any
		expected any
	}{{
		"boolean literal",
		"true", nil, nil, true,
	}, {
		"nil literal",
		"nil", nil, nil, nil,
	}, {
		"integer arithmetic",
		"1 + 2 * 3", nil, nil, int64(7),
	}, {
		"integer division truncates",
		"3 / 2", nil, nil, int64(1),
	}, {
		"mixed arithmetic is float",
		"2 + 1.5", nil, nil, 3.5,
	}, {
		"parentheses",
		"(1 + 2) * 3", nil, nil, int64(9),
	}, {
		"string concatenation",
		"'a' + 'b'", nil, nil, "ab",
	}, {
		"numeric equality coerces",
		"1 == 1.0", nil, nil, true,
	}, {
		"bare path reads params",
		"a", map[string]any{"a": 5}, nil, 5,
	}, {
		"params prefix",
		"params.a", map[string]any{"a": 5}, nil, 5,
	}, {
		"opt prefix reads options",
		"opt.limit", nil, map[string]any{"limit": 10}, 10,
	}, {
		"nested path",
		"user.org", map[string]any{"user": map[string]any{"org": "x"}}, nil, "x",
	}, {
		"kebab case path",
		"min-id", map[string]any{"min-id": 7}, nil, 7,
	}, {
		"missing path is nil",
		"missing", nil, nil, nil,
	}, {
		"negated missing path",
		"!missing", nil, nil, true,
	}, {
		"dash before digit is subtraction",
		"a-1", map[string]any{"a": 5}, nil, int64(4),
	}, {
		"unary minus",
		"-a", map[string]any{"a": 2}, nil, int64(-2),
	}, {
		"comparison chain",
		"a > 3 && a < 10", map[string]any{"a": 5}, nil, true,
	}, {
		"or short-circuits over missing",
		"a == 1 || b == 1", map[string]any{"a": 1}, nil, true,
	}, {
		"nil equality",
		"missing == nil", nil, nil, true,
	}, {
		"len of string",
		"len('abc')", nil, nil, int64(3),
	}, {
		"len of sequence",
		"len(xs)", map[string]any{"xs": []any{1, 2}}, nil, int64(2),
	}, {
		"len of nil",
		"len(missing)", nil, nil, int64(0),
	}, {
		"upper",
		"upper(name)", map[string]any{"name": "fred"}, nil, "FRED",
	}, {
		"lower",
		"lower('ABC')", nil, nil, "abc",
	}, {
		"str",
		"str(5)", map[string]any{}, nil, "5",
	}}

	for _, test := range tests {
		v := run(c, test.src, test.params, test.options)
		c.Assert(v, DeepEquals, test.expected,
			Commentf("test %q:\nsrc: %s", test.summary, test.src))
	}
}

func (s *EvalSuite) TestRunErrors(c *C) {
	var tests = []struct {
		src string
		err string
	}{{
		"1 / 0",
		`cannot evaluate expression "1 / 0": division by zero`,
	}, {
		"1 % 0",
		`cannot evaluate expression "1 % 0": division by zero`,
	}, {
		"'a' < 1",
		`cannot evaluate expression "'a' < 1": cannot compare string with int64`,
	}, {
		"-'a'",
		`cannot evaluate expression "- 'a'": cannot negate string value`,
	}, {
		"len(1)",
		`cannot evaluate expression "len \( 1 \)": len of int64 value`,
	}}

	for _, test := range tests {
		prog, err := Compile(test.src)
		c.Assert(err, IsNil, Commentf("compile %q", test.src))
		_, err = prog.Run(nil, nil)
		c.Assert(err, ErrorMatches, test.err, Commentf("src: %s", test.src))
	}
}

func (s *EvalSuite) TestCompileErrors(c *C) {
	var tests = []string{
		"a &&",
		"(a",
		"1 +",
		"a b",
		"== 1",
		"'unterminated",
		"lower 'x'",
	}
	for _, src := range tests {
		prog, err := Compile(src)
		c.Assert(prog, IsNil, Commentf("src: %s", src))
		c.Assert(errors.Is(err, ErrCompile), Equals, true, Commentf("src: %s, err: %v", src, err))
	}
}

func (s *EvalSuite) TestCompileCanonicalizes(c *C) {
	p1, err := Compile("a  ==   1")
	c.Assert(err, IsNil)
	p2, err := Compile("a == 1")
	c.Assert(err, IsNil)
	// Formatting differences address the same cache entry.
	c.Assert(p1, Equals, p2)
	c.Assert(p1.Src(), Equals, "a == 1")
}

func (s *EvalSuite) TestCompileFailureIsCached(c *C) {
	_, err1 := Compile("cached-failure &&")
	c.Assert(err1, NotNil)
	_, err2 := Compile("cached-failure &&")
	c.Assert(err2, NotNil)
	c.Assert(err2.Error(), Equals, err1.Error())
}

func (s *EvalSuite) TestConcurrentCompile(c *C) {
	const workers = 8
	progs := make([]*Program, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prog, err := Compile("concurrent + 1")
			if err != nil {
				c.Errorf("worker %d: %s", i, err)
				return
			}
			progs[i] = prog
		}(i)
	}
	wg.Wait()
	for i := 1; i < workers; i++ {
		c.Assert(progs[i], Equals, progs[0])
	}
}

func (s *EvalSuite) TestTruthy(c *C) {
	c.Assert(Truthy(nil), Equals, false)
	c.Assert(Truthy(false), Equals, false)
	c.Assert(Truthy(true), Equals, true)
	c.Assert(Truthy(0), Equals, true)
	c.Assert(Truthy(""), Equals, true)
	c.Assert(Truthy([]any{}), Equals, true)
}

func (s *EvalSuite) TestStringify(c *C) {
	c.Assert(Stringify(nil), Equals, "")
	c.Assert(Stringify("x"), Equals, "x")
	c.Assert(Stringify(42), Equals, "42")
	c.Assert(Stringify(1.5), Equals, "1.5")
	c.Assert(Stringify(true), Equals, "true")
}

type lookupRow struct {
	ID     int    `db:"id"`
	Name   string `db:"name,omitempty"`
	Secret string `db:"-"`
	Plain  int
}

func (s *EvalSuite) TestLookup(c *C) {
	row := lookupRow{ID: 1, Name: "fred", Secret: "x", Plain: 9}
	data := map[string]any{
		"a":   map[string]any{"b": 1},
		"m":   map[string]int{"x": 3},
		"r":   row,
		"rp":  &row,
		"nil": nil,
	}

	v, ok := Lookup(data, "a.b")
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, 1)

	v, ok = Lookup(data, "m.x")
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, 3)

	v, ok = Lookup(data, "r.id")
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, 1)

	// Comma options in the tag are stripped.
	v, ok = Lookup(data, "r.name")
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, "fred")

	// Untagged exported fields resolve under their Go name.
	v, ok = Lookup(data, "r.Plain")
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, 9)

	// A "-" tag hides the field.
	_, ok = Lookup(data, "r.Secret")
	c.Assert(ok, Equals, false)

	v, ok = Lookup(data, "rp.id")
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, 1)

	_, ok = Lookup(data, "a.z")
	c.Assert(ok, Equals, false)
	_, ok = Lookup(data, "missing")
	c.Assert(ok, Equals, false)
	_, ok = Lookup(data, "nil.x")
	c.Assert(ok, Equals, false)
}

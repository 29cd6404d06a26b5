package sqlvec_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "gopkg.in/check.v1"

	"github.com/sqlvec/sqlvec"
)

type LoaderSuite struct{}

var _ = Suite(&LoaderSuite{})

const userDefinitions = `
-- Shared queries for the user store.

-- :name find-user :? :1
-- :doc Find a user by id.
SELECT * FROM users WHERE id = :id

-- :name active-users :? :*
-- :doc Every active user,
-- :doc newest first.
SELECT * FROM users
WHERE active
ORDER BY created_at DESC

-- :name insert-user :! :n
-- :meta {"owner": "accounts", "ticket": 7}
INSERT INTO users (name, org) VALUES (:name, :org)

-- :name count-users
SELECT count(*) AS n FROM users
`

func (s *LoaderSuite) TestLoadString(c *C) {
	qs, err := sqlvec.LoadString(userDefinitions)
	c.Assert(err, IsNil)
	c.Assert(qs, HasLen, 4)

	find, ok := qs["find-user"]
	c.Assert(ok, Equals, true)
	c.Assert(find.Name(), Equals, "find-user")
	c.Assert(find.Doc(), Equals, "Find a user by id.")
	c.Assert(find.Meta(), IsNil)

	sv, err := find.Bind(sqlvec.M{"id": 3})
	c.Assert(err, IsNil)
	c.Assert(sv.SQL, Equals, "SELECT * FROM users WHERE id = ?")
	c.Assert(sv.Values, DeepEquals, []any{3})

	// Repeated :doc lines join with newlines.
	c.Assert(qs["active-users"].Doc(), Equals, "Every active user,\nnewest first.")

	insert := qs["insert-user"]
	c.Assert(insert.Meta(), DeepEquals, map[string]any{"owner": "accounts", "ticket": float64(7)})

	// No header tokens leaves the permissive defaults in place.
	c.Assert(qs["count-users"].Doc(), Equals, "")
}

func (s *LoaderSuite) TestLoad(c *C) {
	qs, err := sqlvec.Load(strings.NewReader(userDefinitions))
	c.Assert(err, IsNil)
	c.Assert(qs, HasLen, 4)
}

func (s *LoaderSuite) TestLoadFile(c *C) {
	path := filepath.Join(c.MkDir(), "users.sql")
	c.Assert(os.WriteFile(path, []byte(userDefinitions), 0o644), IsNil)

	qs, err := sqlvec.LoadFile(path)
	c.Assert(err, IsNil)
	c.Assert(qs, HasLen, 4)
}

func (s *LoaderSuite) TestLoadFileMissing(c *C) {
	qs, err := sqlvec.LoadFile(filepath.Join(c.MkDir(), "nope.sql"))
	c.Assert(qs, IsNil)
	c.Assert(errors.Is(err, sqlvec.ErrUnreadableSource), Equals, true)
}

func (s *LoaderSuite) TestLoadErrors(c *C) {
	var tests = []struct {
		summary string
		src     string
		err     string
	}{{
		summary: "body before a header",
		src:     "SELECT 1",
		err:     "line 1: statement body before a :name header",
	}, {
		summary: "doc before a header",
		src:     "-- :doc docs\nSELECT 1",
		err:     "line 1: :doc before a :name header",
	}, {
		summary: "missing name",
		src:     "-- :name\nSELECT 1",
		err:     "line 1: missing name in :name header",
	}, {
		summary: "empty name header",
		src:     "-- :name \nSELECT 1",
		err:     "line 1: missing name in :name header",
	}, {
		summary: "duplicate definition",
		src:     "-- :name a\nSELECT 1\n-- :name a\nSELECT 2",
		err:     `duplicate definition "a"`,
	}, {
		summary: "definition without a body",
		src:     "-- :name a\n-- :name b\nSELECT 1",
		err:     `definition "a" has no body`,
	}, {
		summary: "bad meta json",
		src:     "-- :name a\n-- :meta not-json\nSELECT 1",
		err:     "line 2: cannot parse :meta object: .*",
	}, {
		summary: "unparsable body",
		src:     "-- :name a\nSELECT 'broken",
		err:     `definition "a": cannot parse template: .*`,
	}}

	for _, test := range tests {
		qs, err := sqlvec.LoadString(test.src)
		c.Assert(qs, IsNil, Commentf("test %q", test.summary))
		c.Assert(err, ErrorMatches, test.err, Commentf("test %q:\nsrc: %s", test.summary, test.src))
	}
}

package sqlvec_test

import (
	"github.com/jmoiron/sqlx"
	. "gopkg.in/check.v1"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sqlvec/sqlvec"
	"github.com/sqlvec/sqlvec/adapter/sqlxadapter"
)

type IntegrationSuite struct{}

var _ = Suite(&IntegrationSuite{})

const personDefinitions = `
-- :name make-table :!
CREATE TABLE person (name text, id integer, team text)

-- :name add-person :! :n
INSERT INTO person (name, id, team) VALUES (:name, :id, :team)

-- :name find-by-id :? :1
SELECT name, id, team FROM person WHERE id = :id

-- :name find-team :? :*
-- :doc Everyone on a team, optionally with an id floor.
SELECT name, id FROM person
WHERE team = :team
--~ if params.min-id
AND id >= :min-id
--~ end
ORDER BY id

-- :name find-by-ids :? :*
SELECT name FROM person WHERE id IN (:v*:ids) ORDER BY id

-- :name drop-table :!
DROP TABLE person
`

func (s *IntegrationSuite) TestSQLite(c *C) {
	sqldb, err := sqlx.Open("sqlite3", ":memory:")
	c.Assert(err, IsNil)
	defer sqldb.Close()

	qs, err := sqlvec.LoadString(personDefinitions)
	c.Assert(err, IsNil)

	db := sqlvec.NewDB(sqlxadapter.New(sqldb))

	_, err = db.Run(nil, qs["make-table"], nil)
	c.Assert(err, IsNil)

	people := []sqlvec.M{
		{"name": "Fred", "id": 1, "team": "engineering"},
		{"name": "Mark", "id": 2, "team": "engineering"},
		{"name": "Mary", "id": 3, "team": "legal"},
		{"name": "James", "id": 4, "team": "engineering"},
	}
	add := qs["add-person"].Runner(db)
	for _, p := range people {
		n, err := add(nil, p)
		c.Assert(err, IsNil)
		c.Assert(n, Equals, int64(1))
	}

	// One row shaped by the :1 header token.
	row, err := db.Run(nil, qs["find-by-id"], sqlvec.M{"id": 3})
	c.Assert(err, IsNil)
	c.Assert(row, DeepEquals, map[string]any{
		"name": "Mary", "id": int64(3), "team": "legal",
	})

	// The conditional region is absent without min-id.
	rows, err := db.Run(nil, qs["find-team"], sqlvec.M{"team": "engineering"})
	c.Assert(err, IsNil)
	c.Assert(rows, DeepEquals, []map[string]any{
		{"name": "Fred", "id": int64(1)},
		{"name": "Mark", "id": int64(2)},
		{"name": "James", "id": int64(4)},
	})

	// And present with it.
	rows, err = db.Run(nil, qs["find-team"], sqlvec.M{"team": "engineering", "min-id": 2})
	c.Assert(err, IsNil)
	c.Assert(rows, DeepEquals, []map[string]any{
		{"name": "Mark", "id": int64(2)},
		{"name": "James", "id": int64(4)},
	})

	// List expansion keeps placeholder and value order aligned.
	rows, err = db.Run(nil, qs["find-by-ids"], sqlvec.M{"ids": []int{1, 3}})
	c.Assert(err, IsNil)
	c.Assert(rows, DeepEquals, []map[string]any{
		{"name": "Fred"},
		{"name": "Mary"},
	})

	_, err = db.Run(nil, qs["drop-table"], nil)
	c.Assert(err, IsNil)
}

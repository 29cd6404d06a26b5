package example

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sqlvec/sqlvec"
	"github.com/sqlvec/sqlvec/adapter/sqlxadapter"

	_ "github.com/mattn/go-sqlite3"
)

const definitions = `
-- :name create-tables :!
CREATE TABLE person (
	name text,
	id integer,
	team text
);

-- :name insert-person :! :n
-- :doc Insert one person.
INSERT INTO person (name, id, team) VALUES (:name, :id, :team)

-- :name people-in-team :? :*
-- :doc Everyone on a team, optionally restricted by a minimum id.
SELECT name, id, team
FROM person
WHERE team = :team
--~ if params.min-id
AND id >= :min-id
--~ end
ORDER BY id

-- :name drop-tables :!
DROP TABLE person
`

func example() {
	sqldb, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		panic(err)
	}

	queries, err := sqlvec.LoadString(definitions)
	if err != nil {
		panic(err)
	}

	db := sqlvec.NewDB(sqlxadapter.New(sqldb))

	if _, err := db.Run(nil, queries["create-tables"], nil); err != nil {
		panic(err)
	}

	people := []sqlvec.M{
		{"name": "Alastair", "id": 1, "team": "engineering"},
		{"name": "Ed", "id": 2, "team": "engineering"},
		{"name": "Marco", "id": 3, "team": "engineering"},
		{"name": "Pedro", "id": 4, "team": "management"},
		{"name": "Sam", "id": 5, "team": "hr"},
	}
	insert := queries["insert-person"].Runner(db)
	for _, p := range people {
		if _, err := insert(nil, p); err != nil {
			panic(err)
		}
	}

	// The header tokens :? :* make this a query returning all rows.
	rows, err := db.Run(nil, queries["people-in-team"], sqlvec.M{"team": "engineering"})
	if err != nil {
		panic(err)
	}
	for _, row := range rows.([]map[string]any) {
		fmt.Printf("%s is on the engineering team\n", row["name"])
	}

	// The same statement with min-id set assembles a different WHERE clause.
	rows, err = db.Run(nil, queries["people-in-team"],
		sqlvec.M{"team": "engineering", "min-id": 2})
	if err != nil {
		panic(err)
	}
	fmt.Printf("%d engineers have id 2 or above\n", len(rows.([]map[string]any)))

	// A statement can also be assembled without touching the database.
	sv, err := queries["people-in-team"].Bind(sqlvec.M{"team": "hr"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("SQL: %s\nvalues: %v\n", sv.SQL, sv.Values)

	if _, err := db.Run(nil, queries["drop-tables"], nil); err != nil {
		panic(err)
	}
}

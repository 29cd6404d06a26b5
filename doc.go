// Package sqlvec assembles SQL from templates written as plain SQL with
// named parameter markers and small embedded expressions. Assembling a
// template against parameter data yields a "sqlvec": the final SQL string
// with positional placeholders plus the values bound to them, in order.
//
// # Templates
//
// A template is ordinary SQL. Named parameters are written with a leading
// colon:
//
//	SELECT * FROM users WHERE id = :id
//
// Each marker becomes one positional placeholder and contributes its value
// at the matching position. A marker may carry a type token selecting a
// different substitution strategy:
//
//	:v:id       value (the default, same as :id)
//	:v*:ids     value list, expands to "?, ?, ?"
//	:t:pair     tuple, expands to "(?, ?)"
//	:t*:rows    tuple list, expands to "(?, ?), (?, ?)"
//	:i:col      identifier, quoted inline
//	:i*:cols    identifier list, quoted and joined with ", "
//	:sql:frag   raw SQL, spliced verbatim
//	:sql*:frags raw SQL list, joined with spaces
//	:snip:sub   a nested Sqlvec, SQL and values spliced in
//	:snip*:subs nested Sqlvec list, joined with ", "
//
// A double colon is never a marker, so PostgreSQL casts like value::int
// pass through untouched.
//
// # Expressions
//
// Templates may embed expressions in SQL comments, so a template remains
// valid SQL to editors and linters. The block form is "/*~ ... */" and the
// line form is "--~ ...". The first word classifies the fragment: if, elif,
// else and end bracket conditional regions; anything else is a computed
// expression whose string result is spliced into the template and
// re-parsed:
//
//	SELECT * FROM users
//	/*~ if opt.include-deleted */
//	WHERE TRUE
//	/*~ else */
//	WHERE deleted_at IS NULL
//	/*~ end */
//
// Expressions use a small closed language: literals, dotted lookups into
// the parameter data (and into options via "opt."), comparison and boolean
// operators, arithmetic, and the builtins len, str, lower and upper.
// Expressions are compiled once per distinct source and cached
// process-wide.
//
// # Definition files
//
// Statements are usually kept in SQL files, one file holding many named
// definitions:
//
//	-- :name find-user :? :1
//	-- :doc Find a user by id.
//	SELECT * FROM users WHERE id = :id
//
// [LoadFile] returns the definitions as an explicit name to statement map.
// The header's command token (:? query, :! execute) and result token
// (:1 one, :* many, :n affected, :raw raw) become the statement's defaults,
// overridable at the call site.
//
// # Running
//
// A [Statement] can be assembled without a database via [Statement.Bind],
// or run through a [DB], which dispatches on the resolved command and
// result shape and talks to the database through an [adapter.Adapter]. The
// package ships an adapter over sqlx in the sqlxadapter package.
package sqlvec

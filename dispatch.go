package sqlvec

import (
	"sync"
)

// Command says how a statement reaches the database: as a query that
// produces rows or as an execution that produces an outcome.
type Command int

const (
	// CommandQuery runs the statement through the adapter's Query operation.
	CommandQuery Command = iota
	// CommandExecute runs the statement through the adapter's Execute
	// operation.
	CommandExecute
)

var commandNames = map[Command]string{
	CommandQuery:   "query",
	CommandExecute: "execute",
}

func (c Command) String() string {
	return commandNames[c]
}

// ResultShape says how the raw adapter result is presented to the caller.
type ResultShape int

const (
	// ResultRaw hands back whatever the adapter produced.
	ResultRaw ResultShape = iota
	// ResultOne shapes the result into a single row.
	ResultOne
	// ResultMany shapes the result into a slice of rows.
	ResultMany
	// ResultAffected shapes the result into an affected row count.
	ResultAffected
)

var resultNames = map[ResultShape]string{
	ResultRaw:      "raw",
	ResultOne:      "one",
	ResultMany:     "many",
	ResultAffected: "affected",
}

func (r ResultShape) String() string {
	return resultNames[r]
}

// dispatch holds the token to command and token to result shape mappings
// consulted when resolving definition header tokens. The pre-seeded aliases
// follow the conventional short forms of SQL template files. Both maps can
// be extended at runtime.
type dispatchTable struct {
	mutex    sync.RWMutex
	commands map[string]Command
	results  map[string]ResultShape
}

var dispatch = &dispatchTable{
	commands: map[string]Command{
		"?":        CommandQuery,
		"query":    CommandQuery,
		"!":        CommandExecute,
		"execute!": CommandExecute,
		"insert!":  CommandExecute,
		"i!":       CommandExecute,
	},
	results: map[string]ResultShape{
		"raw":      ResultRaw,
		"1":        ResultOne,
		"one":      ResultOne,
		"*":        ResultMany,
		"many":     ResultMany,
		"n":        ResultAffected,
		"affected": ResultAffected,
	},
}

// RegisterCommand maps a header token to a command. Registering an existing
// token overrides its mapping.
func RegisterCommand(token string, c Command) {
	dispatch.mutex.Lock()
	dispatch.commands[token] = c
	dispatch.mutex.Unlock()
}

// RegisterResult maps a header token to a result shape. Registering an
// existing token overrides its mapping.
func RegisterResult(token string, r ResultShape) {
	dispatch.mutex.Lock()
	dispatch.results[token] = r
	dispatch.mutex.Unlock()
}

// lookupCommand resolves a header token to a command. Unknown tokens fall
// back to query, the safe read-only default.
func lookupCommand(token string) (Command, bool) {
	dispatch.mutex.RLock()
	defer dispatch.mutex.RUnlock()
	c, ok := dispatch.commands[token]
	if !ok {
		return CommandQuery, false
	}
	return c, true
}

// lookupResult resolves a header token to a result shape. Unknown tokens
// fall back to raw.
func lookupResult(token string) (ResultShape, bool) {
	dispatch.mutex.RLock()
	defer dispatch.mutex.RUnlock()
	r, ok := dispatch.results[token]
	if !ok {
		return ResultRaw, false
	}
	return r, true
}

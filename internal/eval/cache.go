package eval

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheSize bounds the number of distinct compiled expressions held
// process-wide. Templates reuse a small set of expressions, so evictions are
// effectively never hit in practice.
const cacheSize = 512

// programCache stores compiled expressions keyed by the hash of their
// canonical source. Failed compilations are cached too: a broken expression
// is fatal at first use and retrying cannot fix it.
//
// The mutex serialises the insert path so that at most one compilation wins
// per distinct source. Compilation itself happens outside the lock; a loser
// discards its program and adopts the winner's.
type programCache struct {
	mutex   sync.RWMutex
	entries *lru.Cache[uint64, *cacheEntry]
}

type cacheEntry struct {
	prog *Program
	err  error
}

var once sync.Once
var sharedCache *programCache

// newProgramCache returns the single process-wide instance of the cache.
func newProgramCache() *programCache {
	once.Do(func() {
		entries, err := lru.New[uint64, *cacheEntry](cacheSize)
		if err != nil {
			// lru.New only fails on a non-positive size.
			panic(err)
		}
		sharedCache = &programCache{entries: entries}
	})
	return sharedCache
}

// Compile returns the compiled program for an expression source, compiling
// it on first use and reusing the cached program afterwards. Distinct
// sources that normalize to the same token stream share one program.
func Compile(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %s", ErrCompile, src, err)
	}
	canonicalSrc := canonical(toks)
	key := hashKey(canonicalSrc)

	c := newProgramCache()
	c.mutex.RLock()
	entry, ok := c.entries.Get(key)
	c.mutex.RUnlock()
	if ok {
		return entry.prog, entry.err
	}

	prog, cerr := compile(canonicalSrc, toks)

	c.mutex.Lock()
	// Check if an entry has been inserted by someone else since we last
	// checked.
	if entry, ok := c.entries.Get(key); ok {
		c.mutex.Unlock()
		return entry.prog, entry.err
	}
	c.entries.Add(key, &cacheEntry{prog: prog, err: cerr})
	c.mutex.Unlock()
	return prog, cerr
}

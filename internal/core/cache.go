package core

import (
	"encoding/json"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of memoised results.
const DefaultCacheSize = 256

// ResultCache memoises engine results keyed by a digest of the operation name
// and the canonical JSON of its inputs. The engine is pure, so identical
// inputs always map to identical results. Cached values are shared between
// callers and must be treated as read-only.
type ResultCache struct {
	entries *lru.Cache[uint64, any]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// CacheStats reports hit and miss counters.
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// NewResultCache constructs a cache holding at most size results.
func NewResultCache(size int) (*ResultCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[uint64, any](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{entries: entries}, nil
}

// Key digests the operation and its inputs.
func (c *ResultCache) Key(operation string, inputs ...any) (uint64, error) {
	d := xxhash.New()
	enc := json.NewEncoder(d)
	if err := enc.Encode(operation); err != nil {
		return 0, err
	}
	for _, in := range inputs {
		if err := enc.Encode(in); err != nil {
			return 0, err
		}
	}
	return d.Sum64(), nil
}

// Purge drops every entry.
func (c *ResultCache) Purge() {
	c.entries.Purge()
}

// Stats returns the current counters.
func (c *ResultCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.entries.Len()}
}

// memoize returns the cached result for the inputs or computes and stores it.
// Inputs that cannot be encoded bypass the cache.
func memoize[T any](c *ResultCache, operation string, compute func() T, inputs ...any) T {
	if c == nil {
		return compute()
	}
	key, err := c.Key(operation, inputs...)
	if err != nil {
		return compute()
	}
	if v, ok := c.entries.Get(key); ok {
		if typed, ok := v.(T); ok {
			c.hits.Add(1)
			return typed
		}
	}
	c.misses.Add(1)
	result := compute()
	c.entries.Add(key, result)
	return result
}

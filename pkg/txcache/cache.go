// Package txcache provides a bounded, insertion-ordered set of processed
// transactions used as the ingestion admission gate.
package txcache

import (
	"errors"
	"sync"
)

var ErrInvalidMaxEntries = errors.New("invalid max entries: must be positive")

// EvictFunc is called with the evicted entry while the cache lock is held. It
// must not call back into the cache.
type EvictFunc[V any] func(id string, v V)

// Cache maps transaction ids to values and evicts the oldest inserted id once
// full. Lookups do not affect eviction order. A transaction redelivered after
// its id was evicted is treated as new.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]V
	ring    []string
	head    int // index of the oldest id in ring
	max     int
	onEvict EvictFunc[V]
}

// New creates a cache holding at most maxEntries ids. onEvict may be nil.
func New[V any](maxEntries int, onEvict EvictFunc[V]) (*Cache[V], error) {
	if maxEntries <= 0 {
		return nil, ErrInvalidMaxEntries
	}
	return &Cache[V]{
		entries: make(map[string]V, min(maxEntries, 4096)),
		ring:    make([]string, 0, min(maxEntries, 4096)),
		max:     maxEntries,
		onEvict: onEvict,
	}, nil
}

func (c *Cache[V]) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

func (c *Cache[V]) Get(id string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[id]
	return v, ok
}

// Add records id unless it is already present, in which case the stored value
// is left untouched. It reports whether id was inserted.
func (c *Cache[V]) Add(id string, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		return false
	}
	if len(c.ring) < c.max {
		c.ring = append(c.ring, id)
	} else {
		oldest := c.ring[c.head]
		evicted := c.entries[oldest]
		delete(c.entries, oldest)
		c.ring[c.head] = id
		c.head = (c.head + 1) % len(c.ring)
		if c.onEvict != nil {
			c.onEvict(oldest, evicted)
		}
	}
	c.entries[id] = v
	return true
}

func (c *Cache[V]) MaxEntries() int {
	return c.max
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

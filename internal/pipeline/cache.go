package pipeline

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cacheEntry pairs a canonical graph with the revision it was derived from.
type cacheEntry struct {
	canonical CanonicalGraph
	revision  string
}

// Cache memoises normalized graphs across executions of stored pipelines.
// Entries are keyed by pipeline ID and checked against the row's update
// timestamp, so writes from another process fall out naturally. Normalized
// graphs are never mutated downstream, which makes sharing one entry across
// concurrent executions safe.
type Cache struct {
	lru *expirable.LRU[string, cacheEntry]
}

// NewCache creates a cache holding at most capacity graphs for at most ttl.
// A capacity of 0 means unlimited size.
func NewCache(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		lru: expirable.NewLRU[string, cacheEntry](capacity, nil, ttl),
	}
}

// LoadLatest returns the cached canonical graph for id while revision still
// matches, otherwise it invokes loader and stores the result.
func (c *Cache) LoadLatest(id, revision string, loader func() (CanonicalGraph, error)) (CanonicalGraph, error) {
	if e, ok := c.lru.Get(id); ok && e.revision == revision {
		return e.canonical, nil
	}
	canonical, err := loader()
	if err != nil {
		return CanonicalGraph{}, err
	}
	c.lru.Add(id, cacheEntry{canonical: canonical, revision: revision})
	return canonical, nil
}

// Invalidate removes the cached graph for id.
func (c *Cache) Invalidate(id string) {
	c.lru.Remove(id)
}

// Size returns the current number of cached graphs.
func (c *Cache) Size() int {
	return c.lru.Len()
}

// Package cache holds deserialized products in memory: a capacity-bounded
// least-recently-used cache for per-day products, and an unbounded pinned
// cache for small shared reference files.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a fixed-capacity cache that evicts the least recently used entry when
// a new key would exceed the capacity. Every Get and Put refreshes recency.
// A capacity of zero or less stores nothing. LRU is safe for concurrent use.
type LRU[K comparable, V any] struct {
	capacity int
	inner    *lru.Cache[K, V]
}

// NewLRU returns an LRU holding at most capacity entries. onEvict, if non-nil,
// is called with every entry evicted to make room.
func NewLRU[K comparable, V any](capacity int, onEvict func(K, V)) *LRU[K, V] {
	c := &LRU[K, V]{capacity: capacity}
	if capacity <= 0 {
		return c
	}
	inner, err := lru.NewWithEvict[K, V](capacity, onEvict)
	if err != nil {
		// Only returned for a non-positive size.
		return c
	}
	c.inner = inner
	return c
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	if c.inner == nil {
		var zero V
		return zero, false
	}
	return c.inner.Get(key)
}

// Put inserts or replaces the value for key and marks it most recently used.
// Replacing never evicts; inserting into a full cache evicts exactly one entry.
// It reports whether an eviction happened.
func (c *LRU[K, V]) Put(key K, value V) bool {
	if c.inner == nil {
		return false
	}
	return c.inner.Add(key, value)
}

// Contains reports whether key is cached without touching its recency.
func (c *LRU[K, V]) Contains(key K) bool {
	return c.inner != nil && c.inner.Contains(key)
}

// Keys returns the cached keys from least to most recently used.
func (c *LRU[K, V]) Keys() []K {
	if c.inner == nil {
		return nil
	}
	return c.inner.Keys()
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	if c.inner == nil {
		return 0
	}
	return c.inner.Len()
}

// Cap returns the capacity fixed at construction.
func (c *LRU[K, V]) Cap() int {
	return c.capacity
}

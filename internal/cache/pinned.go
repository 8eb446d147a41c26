package cache

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Pinned is an unbounded cache whose entries live for the lifetime of the
// process. Concurrent loads of the same key share one call to load.
type Pinned[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	group singleflight.Group
}

// NewPinned returns an empty Pinned cache.
func NewPinned[V any]() *Pinned[V] {
	return &Pinned[V]{items: make(map[string]V)}
}

// Get returns the value stored under key.
func (p *Pinned[V]) Get(key string) (V, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.items[key]
	return v, ok
}

// GetOrLoad returns the value under key, calling load to produce it on the
// first request. A failed load stores nothing. loaded reports whether this
// call observed a miss.
func (p *Pinned[V]) GetOrLoad(key string, load func() (V, error)) (v V, loaded bool, err error) {
	if v, ok := p.Get(key); ok {
		return v, false, nil
	}
	res, err, _ := p.group.Do(key, func() (any, error) {
		if v, ok := p.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.items[key] = v
		p.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, true, err
	}
	v, _ = res.(V)
	return v, true, nil
}

// Len returns the number of pinned entries.
func (p *Pinned[V]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

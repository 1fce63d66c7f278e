package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache is a concurrent-safe in-memory store keyed by string.
// Concurrent loads of the same missing key share a single call.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	group singleflight.Group
}

// New returns an empty cache
func New[V any]() *Cache[V] {
	return &Cache[V]{items: make(map[string]V)}
}

// Get returns the value for key and whether it was present
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

// Set stores value under key
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

// Delete forgets key
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len reports how many keys are stored
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// GetOrLoad returns the cached value for key, calling load to fill it on a miss.
// The loaded value is stored whatever load returns, so a failed lookup is not
// repeated for the lifetime of the cache.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) V) V {
	if v, ok := c.Get(key); ok {
		return v
	}

	res, _, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v := load(ctx)
		c.Set(key, v)
		return v, nil
	})
	return res.(V)
}

// Package cache implements the byte-budget LRU caches shared by the
// dump block store, the parsed-page store, and the compiled Lua module
// store. Every cache here is single-flighted: concurrent misses on the
// same key share one producer, and a value only ever becomes visible to
// readers once it is fully built (publish-after-complete).
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SizeFunc reports the approximate in-memory size, in bytes, of a cached
// value, for byte-budget accounting.
type SizeFunc[V any] func(V) int64

// Cache is a capacity-bounded, LRU-evicted, single-flighted cache.
// The zero value is not usable; construct with New.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	ll       *list.List // front = most recently used
	items    map[K]*list.Element
	sizeOf   SizeFunc[V]
	group    singleflight.Group

	hits, misses int64
}

type entry[K comparable, V any] struct {
	key  K
	val  V
	size int64
}

// New creates a Cache with the given byte capacity. sizeOf estimates the
// size of a value; pass a function returning 1 to get a plain
// count-bounded LRU.
func New[K comparable, V any](capacityBytes int64, sizeOf SizeFunc[V]) *Cache[K, V] {
	return &Cache[K, V]{
		capacity: capacityBytes,
		ll:       list.New(),
		items:    make(map[K]*list.Element),
		sizeOf:   sizeOf,
	}
}

// Get returns the cached value for key without triggering a load.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.ll.MoveToFront(el)
	return el.Value.(*entry[K, V]).val, true
}

// Put inserts or replaces the cached value for key, evicting the
// least-recently-used entries if needed to stay within the byte budget.
func (c *Cache[K, V]) Put(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, val)
}

func (c *Cache[K, V]) putLocked(key K, val V) {
	size := c.sizeOf(val)

	if el, ok := c.items[key]; ok {
		old := el.Value.(*entry[K, V])
		c.size += size - old.size
		old.val = val
		old.size = size
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&entry[K, V]{key: key, val: val, size: size})
		c.items[key] = el
		c.size += size
	}

	for c.size > c.capacity && c.ll.Len() > 1 {
		c.evictOldestLocked()
	}
}

func (c *Cache[K, V]) evictOldestLocked() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	ent := el.Value.(*entry[K, V])
	delete(c.items, ent.key)
	c.size -= ent.size
}

// Load is called on a cache miss to produce the value for key. It
// receives the values of the context passed to GetOrLoad but not its
// cancellation, so a producer shared by several callers runs to
// completion even if the caller that started it gives up.
type Load[V any] func(ctx context.Context) (V, error)

// GetOrLoad returns the cached value for key, or, on a miss, calls load
// exactly once per set of concurrent callers (single-flight) and
// publishes the result for subsequent readers. If ctx is cancelled
// before the value is available, GetOrLoad returns ctx.Err() without
// disturbing any in-flight producer or poisoning the cache for other
// callers: the producer's result, once ready, is still published.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, load Load[V]) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	sfKey := fmt.Sprint(key)
	resultCh := c.group.DoChan(sfKey, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})

	select {
	case res := <-resultCh:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Stats reports cumulative hit/miss counts, for diagnostics.
func (c *Cache[K, V]) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of entries currently cached.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// SizeBytes returns the current total accounted size of cached entries.
func (c *Cache[K, V]) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

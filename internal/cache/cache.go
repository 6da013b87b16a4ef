// Package cache provides the in-memory TTL + LRU store backing the
// content pipeline. Expiry is lazy: entries are checked on read, never
// reaped in the background, so an expired entry remains available to
// callers that explicitly accept stale data.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
}

type entry[V any] struct {
	key       string
	value     V
	fetchedAt time.Time
}

// Cache is a bounded TTL + LRU map. All methods are safe for
// concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	hits    uint64
	misses  uint64

	now func() time.Time
}

// New builds a cache holding at most maxEntries values for ttl each.
// Both bounds must be positive.
func New[V any](ttl time.Duration, maxEntries int) (*Cache[V], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache: ttl must be positive, got %s", ttl)
	}
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache: max entries must be positive, got %d", maxEntries)
	}
	return &Cache[V]{
		ttl:     ttl,
		max:     maxEntries,
		entries: make(map[string]*list.Element, maxEntries),
		order:   list.New(),
		now:     time.Now,
	}, nil
}

// Get returns the fresh value under key. An absent or expired entry is
// a miss; expired entries stay in place for stale readers. A hit
// refreshes the entry's recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	en := el.Value.(*entry[V])
	if c.now().Sub(en.fetchedAt) >= c.ttl {
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return en.value, true
}

// GetStale returns the value under key regardless of expiry, along with
// the time it was stored. It does not touch recency or the hit/miss
// counters; it exists for degraded paths that prefer old data to none.
func (c *Cache[V]) GetStale(key string) (V, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, time.Time{}, false
	}
	en := el.Value.(*entry[V])
	return en.value, en.fetchedAt, true
}

// Put stores value under key, stamped now.
func (c *Cache[V]) Put(key string, value V) {
	c.PutAt(key, value, c.now())
}

// PutAt stores value under key with an explicit fetch time, so entries
// restored from a snapshot keep their original age. Inserting into a
// full cache evicts the least recently used entry.
func (c *Cache[V]) PutAt(key string, value V, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		en := el.Value.(*entry[V])
		en.value = value
		en.fetchedAt = fetchedAt
		c.order.MoveToFront(el)
		return
	}
	if len(c.entries) >= c.max {
		c.evictOldest()
	}
	c.entries[key] = c.order.PushFront(&entry[V]{key: key, value: value, fetchedAt: fetchedAt})
}

func (c *Cache[V]) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	en := el.Value.(*entry[V])
	c.order.Remove(el)
	delete(c.entries, en.key)
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// Range calls fn for every entry, expired ones included, in no
// particular order. Iteration works on a copied snapshot, so fn may
// call back into the cache.
func (c *Cache[V]) Range(fn func(key string, value V, fetchedAt time.Time) bool) {
	c.mu.Lock()
	snapshot := make([]entry[V], 0, len(c.entries))
	for el := c.order.Front(); el != nil; el = el.Next() {
		snapshot = append(snapshot, *el.Value.(*entry[V]))
	}
	c.mu.Unlock()

	for _, en := range snapshot {
		if !fn(en.key, en.value, en.fetchedAt) {
			return
		}
	}
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports hit/miss counters accumulated by Get.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    len(c.entries),
		MaxSize: c.max,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

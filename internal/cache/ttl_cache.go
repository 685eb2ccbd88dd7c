package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiration
}

func (e entry[V]) expired(at time.Time) bool {
	return !e.expiresAt.IsZero() && !at.Before(e.expiresAt)
}

// TTLCache is a goroutine-safe map-backed cache with per-entry deadlines.
// Cleanup is lazy: expired entries are hidden from Get and Len and removed by PurgeExpired.
type TTLCache[K comparable, V any] struct {
	mu       sync.RWMutex
	items    map[K]entry[V]
	maxItems int
	now      func() time.Time
}

// Options controls construction of a TTLCache.
type Options struct {
	// MaxItems bounds the cache; once reached, Set purges expired entries and,
	// if still full, drops the entry closest to expiry. Zero means unbounded.
	MaxItems int

	// Clock overrides time.Now, mostly for tests.
	Clock func() time.Time
}

// NewTTLCache constructs an empty TTLCache.
func NewTTLCache[K comparable, V any](opts Options) *TTLCache[K, V] {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TTLCache[K, V]{
		items:    make(map[K]entry[V]),
		maxItems: opts.MaxItems,
		now:      clock,
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	e, ok := c.items[key]
	if !ok || e.expired(c.now()) {
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	var deadline time.Time
	if ttl > 0 {
		deadline = c.now().Add(ttl)
	}
	c.SetUntil(key, value, deadline)
}

func (c *TTLCache[K, V]) SetUntil(key K, value V, deadline time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		c.purgeLocked()
		if len(c.items) >= c.maxItems {
			c.evictOneLocked()
		}
	}
	c.items[key] = entry[V]{value: value, expiresAt: deadline}
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	at := c.now()
	count := 0
	for _, e := range c.items {
		if !e.expired(at) {
			count++
		}
	}
	return count
}

func (c *TTLCache[K, V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked()
}

func (c *TTLCache[K, V]) purgeLocked() int {
	at := c.now()
	dropped := 0
	for k, e := range c.items {
		if e.expired(at) {
			delete(c.items, k)
			dropped++
		}
	}
	return dropped
}

// evictOneLocked drops the entry with the earliest deadline; entries without
// a deadline are only chosen when nothing else is left.
func (c *TTLCache[K, V]) evictOneLocked() {
	var (
		victim K
		found  bool
		best   time.Time
	)
	for k, e := range c.items {
		if !found {
			victim, best, found = k, e.expiresAt, true
			continue
		}
		if e.expiresAt.IsZero() {
			continue
		}
		if best.IsZero() || e.expiresAt.Before(best) {
			victim, best = k, e.expiresAt
		}
	}
	if found {
		delete(c.items, victim)
	}
}

var _ Cache[string, int] = (*TTLCache[string, int])(nil)

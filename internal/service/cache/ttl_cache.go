package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	v   V
	exp time.Time
}

// TTLCache is a small in-process cache for responses that change slowly.
// Expired entries are swept on Set; with a size limit the entry closest to
// expiry is evicted first.
type TTLCache[V any] struct {
	mu         sync.RWMutex
	m          map[string]entry[V]
	maxEntries int
	now        func() time.Time
}

type TTLOption func(*ttlOptions)

type ttlOptions struct {
	maxEntries int
}

// WithMaxEntries bounds the cache size. Zero means unbounded.
func WithMaxEntries(n int) TTLOption {
	return func(o *ttlOptions) { o.maxEntries = n }
}

func NewTTLCache[V any](opts ...TTLOption) *TTLCache[V] {
	var o ttlOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[V]{m: make(map[string]entry[V]), maxEntries: o.maxEntries, now: time.Now}
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return zero, false
	}
	return e.v, true
}

// Set stores v. A non-positive ttl never expires.
func (c *TTLCache[V]) Set(key string, v V, ttl time.Duration) {
	now := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.m {
		if e.expired(now) {
			delete(c.m, k)
		}
	}
	if _, exists := c.m[key]; !exists && c.maxEntries > 0 {
		for len(c.m) >= c.maxEntries {
			c.evictOne()
		}
	}
	c.m[key] = entry[V]{v: v, exp: exp}
}

// evictOne drops the entry that expires soonest, preferring any that expire
// over those that never do. Callers hold c.mu.
func (c *TTLCache[V]) evictOne() {
	var (
		victim string
		best   time.Time
		found  bool
	)
	for k, e := range c.m {
		switch {
		case !found:
		case e.exp.IsZero():
			continue
		case best.IsZero() || e.exp.Before(best):
		default:
			continue
		}
		victim, best, found = k, e.exp, true
	}
	if found {
		delete(c.m, victim)
	}
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}

// Purge drops every entry.
func (c *TTLCache[V]) Purge() {
	c.mu.Lock()
	c.m = make(map[string]entry[V])
	c.mu.Unlock()
}

func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

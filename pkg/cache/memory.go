package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    string
	expireAt time.Time // zero means no expiry
}

func (m memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache implements Service in process memory. Nothing survives a restart.
type MemoryCache struct {
	mu     sync.RWMutex
	data   map[string]memoryItem
	closed bool
	now    func() time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]memoryItem),
		now:  time.Now,
	}
}

func (mc *MemoryCache) Get(_ context.Context, key string) (string, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if mc.closed {
		return "", ErrClosed
	}
	item, ok := mc.data[key]
	if !ok || item.expired(mc.now()) {
		return "", ErrCacheMiss
	}
	return item.value, nil
}

func (mc *MemoryCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return mc.MSet(ctx, map[string]string{key: value}, expiration)
}

func (mc *MemoryCache) MSet(_ context.Context, values map[string]string, expiration time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return ErrClosed
	}
	var expireAt time.Time
	if expiration > 0 {
		expireAt = mc.now().Add(expiration)
	}
	for k, v := range values {
		mc.data[k] = memoryItem{value: v, expireAt: expireAt}
	}
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return ErrClosed
	}
	for _, k := range keys {
		delete(mc.data, k)
	}
	return nil
}

func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.closed = true
	mc.data = nil
	return nil
}

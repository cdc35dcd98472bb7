package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    []byte
	insertAt time.Time
	expireAt time.Time
}

func (m memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache implements Service using an in-memory map.
// Expiry is checked at read time; there is no background eviction, which
// keeps behavior deterministic under test.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]memoryItem
	maxSize int
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize: 1000,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &MemoryCache{
		data:    make(map[string]memoryItem),
		maxSize: cfg.MaxSize,
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()
	var expireAt time.Time
	if ttl > 0 {
		expireAt = now.Add(ttl)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.data) >= mc.maxSize {
		mc.evictLocked(now)
	}
	mc.data[key] = memoryItem{value: value, insertAt: now, expireAt: expireAt}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	mc.mu.RLock()
	item, exists := mc.data[key]
	mc.mu.RUnlock()
	if !exists {
		return nil, false, nil
	}
	if item.expired(time.Now()) {
		mc.dropIfStale(key, item)
		return nil, false, nil
	}
	return item.value, true, nil
}

// dropIfStale removes key only while it still holds the item the caller
// read. A Set may have stored a fresh entry between the read lock and the
// write lock; that entry must survive.
func (mc *MemoryCache) dropIfStale(key string, read memoryItem) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if cur, ok := mc.data[key]; ok && cur.insertAt.Equal(read.insertAt) {
		delete(mc.data, key)
	}
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

// Flush drops every entry regardless of TTL.
func (mc *MemoryCache) Flush(_ context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.data = make(map[string]memoryItem)
	return nil
}

func (mc *MemoryCache) Close() error { return nil }

// evictLocked removes expired entries, then the oldest entry if the cache
// is still at capacity. Caller must hold mu.
func (mc *MemoryCache) evictLocked(now time.Time) {
	for key, item := range mc.data {
		if item.expired(now) {
			delete(mc.data, key)
		}
	}
	if len(mc.data) < mc.maxSize {
		return
	}

	var oldestKey string
	oldestTime := now
	for key, item := range mc.data {
		if item.insertAt.Before(oldestTime) {
			oldestTime = item.insertAt
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}

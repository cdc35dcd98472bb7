package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := mc.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(got) != "v" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := mc.Get(ctx, "k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestMemoryCacheExpiredDropKeepsFreshReplacement(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()

	// Snapshot of an expired entry as a reader would have seen it before a
	// concurrent Set replaced it.
	stale := memoryItem{
		value:    []byte("old"),
		insertAt: time.Now().Add(-time.Hour),
		expireAt: time.Now().Add(-time.Minute),
	}
	if err := mc.Set(ctx, "k", []byte("new"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	mc.dropIfStale("k", stale)

	got, ok, err := mc.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("fresh entry dropped, ok=%v err=%v", ok, err)
	}
	if string(got) != "new" {
		t.Fatalf("unexpected value %q", got)
	}

	// The drop still fires when the stored item is the one that was read.
	mc.mu.Lock()
	mc.data["k2"] = stale
	mc.mu.Unlock()
	mc.dropIfStale("k2", stale)
	mc.mu.RLock()
	_, exists := mc.data["k2"]
	mc.mu.RUnlock()
	if exists {
		t.Fatalf("expected stale entry removed")
	}
}

func TestMemoryCacheFlush(t *testing.T) {
	mc := NewMemoryCache()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", []byte("1"), time.Minute)
	_ = mc.Set(ctx, "b", []byte("2"), time.Minute)
	if err := mc.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, ok, _ := mc.Get(ctx, "a"); ok {
		t.Fatalf("expected miss after flush")
	}
	if _, ok, _ := mc.Get(ctx, "b"); ok {
		t.Fatalf("expected miss after flush")
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	ctx := context.Background()

	_ = mc.Set(ctx, "a", []byte("1"), time.Minute)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", []byte("2"), time.Minute)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "c", []byte("3"), time.Minute)

	if _, ok, _ := mc.Get(ctx, "a"); ok {
		t.Fatalf("expected oldest entry evicted")
	}
	if _, ok, _ := mc.Get(ctx, "c"); !ok {
		t.Fatalf("expected newest entry present")
	}
}

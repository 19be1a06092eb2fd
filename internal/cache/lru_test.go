package cache

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUCacheSetGet(t *testing.T) {
	c := NewLRUCache[string](4, time.Minute)

	c.Set("a", "one")
	got, found := c.Get("a")
	if !found || got != "one" {
		t.Fatalf("Get(a) = %q, %v; want %q, true", got, found, "one")
	}

	c.Set("a", "two")
	if got, _ := c.Get("a"); got != "two" {
		t.Errorf("Get(a) after update = %q, want %q", got, "two")
	}

	if _, found := c.Get("missing"); found {
		t.Error("Get(missing) should not find a value")
	}
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // refresh recency so b becomes the eviction candidate
	c.Set("c", 3)

	if _, found := c.Get("b"); found {
		t.Error("b should have been evicted")
	}
	for _, key := range []string{"a", "c"} {
		if _, found := c.Get(key); !found {
			t.Errorf("%s should still be cached", key)
		}
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)

	c.Set("a", 1)
	c.Delete("a")
	if _, found := c.Get("a"); found {
		t.Error("a should be gone after Delete")
	}

	// Deleting a missing key is a no-op.
	c.Delete("missing")
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache[int](4, 10*time.Millisecond)

	c.Set("a", 1)
	time.Sleep(30 * time.Millisecond)

	if _, found := c.Get("a"); found {
		t.Error("expired entry should not be returned")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c := NewLRUCache[int](8, 10*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(30 * time.Millisecond)
	c.Set("c", 3)

	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("CleanExpired() = %d, want 2", removed)
	}
	if _, found := c.Get("c"); !found {
		t.Error("fresh entry should survive cleanup")
	}
}

type countingCleaner struct {
	calls atomic.Int32
}

func (c *countingCleaner) CleanExpired() int {
	c.calls.Add(1)
	return 0
}

func TestManagerSweepsRegisteredCaches(t *testing.T) {
	cleaner := &countingCleaner{}

	m := NewManager()
	m.Register(cleaner)
	m.StartCleanup(10 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for cleaner.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()

	if cleaner.calls.Load() == 0 {
		t.Error("registered cleaner was never swept")
	}
}

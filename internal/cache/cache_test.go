package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCache_GetSet(t *testing.T) {
	c := New[string, int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Size != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b is now least recently used
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCache_UpdateExisting(t *testing.T) {
	c := New[string, int](2, 0)
	c.Set("a", 1)
	c.Set("a", 5)
	if v, _ := c.Get("a"); v != 5 {
		t.Errorf("Get(a) = %d, want 5", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCache_TTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New[int, string](10, time.Minute, WithClock[int, string](clock.Now))
	c.Set(1, "x")
	clock.Advance(59 * time.Second)
	if _, ok := c.Get(1); !ok {
		t.Error("entry should still be valid before TTL")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get(1); ok {
		t.Error("entry should expire at TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be evicted on read, Len = %d", c.Len())
	}
}

func TestCache_SetUntil(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New[int, string](10, time.Minute, WithClock[int, string](clock.Now))

	c.SetUntil(1, "aged", clock.Now().Add(10*time.Second))
	c.SetUntil(2, "future", clock.Now().Add(time.Hour))
	clock.Advance(10 * time.Second)
	if _, ok := c.Get(1); ok {
		t.Error("entry should expire at its own deadline")
	}
	clock.Advance(49 * time.Second)
	if _, ok := c.Get(2); !ok {
		t.Error("entry should still be valid before TTL")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get(2); ok {
		t.Error("expiry past the TTL should be capped at the TTL")
	}
}

func TestCache_DeletePurge(t *testing.T) {
	c := New[string, int](4, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be deleted")
	}
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len after Purge = %d", c.Len())
	}
}

func TestCache_MinimumCapacity(t *testing.T) {
	c := New[string, int](0, 0)
	c.Set("a", 1)
	if _, ok := c.Get("a"); !ok {
		t.Error("capacity below 1 should still hold one entry")
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int, int](64, time.Hour)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Set(i%100, g)
				c.Get(i % 50)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 64 {
		t.Errorf("Len = %d exceeds capacity", c.Len())
	}
}

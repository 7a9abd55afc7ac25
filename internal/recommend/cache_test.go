package recommend

import (
	"fmt"
	"testing"
	"time"

	"github.com/talentpath/upskiller/internal/catalog"
)

func resultWith(ids ...string) ResultSet {
	items := make([]catalog.Candidate, len(ids))
	for i, id := range ids {
		items[i] = catalog.Candidate{ID: id, Title: id, Type: catalog.TypeCourse, Similarity: 0.9}
	}
	return ResultSet{Items: items, TypeDiversity: 1, Types: []string{catalog.TypeCourse}}
}

func TestCacheGetMissThenHit(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(10, time.Minute)

	if _, ok := cache.Get("absent"); ok {
		t.Fatalf("expected miss for absent key")
	}

	cache.Set("k1", resultWith("c1", "c2"))

	got, ok := cache.Get("k1")
	if !ok {
		t.Fatalf("expected hit after set")
	}
	if len(got.Items) != 2 || got.Items[0].ID != "c1" {
		t.Fatalf("unexpected cached result: %+v", got)
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %+v", stats)
	}
	if stats.HitRate != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %v", stats.HitRate)
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(10, time.Minute)
	original := resultWith("c1")
	cache.Set("k1", original)

	// Mutating the value passed in must not affect the cached entry.
	original.Items[0].ID = "mutated-input"

	first, _ := cache.Get("k1")
	first.Items[0].ID = "mutated-output"

	second, _ := cache.Get("k1")
	if second.Items[0].ID != "c1" {
		t.Fatalf("cache entry was mutated through a caller reference: %+v", second.Items[0])
	}
}

func TestCacheTTLExpiryOnRead(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(10, 30*time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("k1", resultWith("c1"))

	// Just inside the TTL the entry is served.
	now = now.Add(29 * time.Minute)
	if _, ok := cache.Get("k1"); !ok {
		t.Fatalf("expected hit inside TTL")
	}

	// Past the TTL the entry is removed synchronously and reported as a miss.
	now = now.Add(32 * time.Minute)
	if _, ok := cache.Get("k1"); ok {
		t.Fatalf("expected miss past TTL")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry was not removed, size=%d", cache.Len())
	}
}

func TestCacheCapacityAndLRUEviction(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(3, time.Minute)

	cache.Set("a", resultWith("a"))
	cache.Set("b", resultWith("b"))
	cache.Set("c", resultWith("c"))

	// Touch "a" so "b" becomes the least recently used entry.
	if _, ok := cache.Get("a"); !ok {
		t.Fatalf("expected hit for a")
	}

	cache.Set("d", resultWith("d"))

	if cache.Len() != 3 {
		t.Fatalf("capacity invariant violated: size=%d", cache.Len())
	}
	if _, ok := cache.Get("b"); ok {
		t.Fatalf("expected b to be evicted as least recently used")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := cache.Get(key); !ok {
			t.Fatalf("expected %s to survive eviction", key)
		}
	}
}

func TestCacheSizeNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(5, time.Minute)
	for i := 0; i < 50; i++ {
		cache.Set(fmt.Sprintf("key-%d", i), resultWith("r"))
		if cache.Len() > 5 {
			t.Fatalf("capacity invariant violated after %d sets: size=%d", i+1, cache.Len())
		}
	}
}

func TestCacheSetOverwritesAndRefreshes(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(10, 30*time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("k1", resultWith("old"))

	now = now.Add(20 * time.Minute)
	cache.Set("k1", resultWith("new"))

	// The overwrite reset the clock: 20 more minutes is still inside TTL.
	now = now.Add(20 * time.Minute)
	got, ok := cache.Get("k1")
	if !ok {
		t.Fatalf("expected hit, overwrite should refresh the timestamp")
	}
	if got.Items[0].ID != "new" {
		t.Fatalf("expected overwritten value, got %+v", got.Items[0])
	}
	if cache.Len() != 1 {
		t.Fatalf("overwrite must not grow the cache, size=%d", cache.Len())
	}
}

func TestCacheInvalidateExpired(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(10, 30*time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("old1", resultWith("a"))
	cache.Set("old2", resultWith("b"))

	now = now.Add(31 * time.Minute)
	cache.Set("fresh", resultWith("c"))

	removed := cache.InvalidateExpired()
	if removed != 2 {
		t.Fatalf("expected 2 expired entries removed, got %d", removed)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected only the fresh entry to remain, size=%d", cache.Len())
	}
	if _, ok := cache.Get("fresh"); !ok {
		t.Fatalf("fresh entry should survive the sweep")
	}
}

func TestCacheClear(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(10, time.Minute)
	cache.Set("a", resultWith("a"))
	cache.Set("b", resultWith("b"))

	if removed := cache.Clear(); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache after clear, size=%d", cache.Len())
	}
	if _, ok := cache.Get("a"); ok {
		t.Fatalf("expected miss after clear")
	}
}

func TestCacheStatsEstimatesMemory(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(10, time.Minute)
	cache.Set("k1", resultWith("c1", "c2", "c3"))

	stats := cache.Stats()
	if stats.Size != 1 {
		t.Fatalf("expected size 1, got %d", stats.Size)
	}
	if stats.EstimatedBytes <= 0 {
		t.Fatalf("expected a positive memory estimate, got %d", stats.EstimatedBytes)
	}
}

func TestCacheTopEntriesOrderedByHits(t *testing.T) {
	t.Parallel()

	cache := NewResultCache(10, time.Minute)
	cache.Set("cold", resultWith("a"))
	cache.Set("warm", resultWith("b"))
	cache.Set("hot", resultWith("c"))

	for i := 0; i < 3; i++ {
		cache.Get("hot")
	}
	cache.Get("warm")

	top := cache.TopEntries(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Key != "hot" || top[0].Hits != 3 {
		t.Fatalf("unexpected hottest entry: %+v", top[0])
	}
	if top[1].Key != "warm" {
		t.Fatalf("unexpected second entry: %+v", top[1])
	}
}

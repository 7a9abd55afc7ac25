package recommend

import (
	"container/list"
	"sort"
	"sync"
	"time"
)

const (
	// Fixed per-entry bookkeeping overhead used for the memory estimate.
	entryOverheadBytes = 120
	itemOverheadBytes  = 24
)

// CacheStats is a read-only snapshot of cache performance.
type CacheStats struct {
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
	HitRate        float64 `json:"hit_rate"`
	Size           int     `json:"size"`
	Capacity       int     `json:"capacity"`
	EstimatedBytes int64   `json:"estimated_bytes"`
}

// EntryInfo describes one cached entry for the admin surface.
type EntryInfo struct {
	Key       string        `json:"key"`
	Hits      int64         `json:"hits"`
	Age       time.Duration `json:"age"`
	Resources int           `json:"resources"`
}

type cacheEntry struct {
	key        string
	result     ResultSet
	createdAt  time.Time
	lastAccess time.Time
	hits       int64
}

// ResultCache is a bounded, TTL'd result store with strict LRU eviction.
// All operations are serialized by a single mutex; none of them touch the
// network, so the critical sections stay short. Entries are owned by the
// cache: callers always receive copies.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	hits     uint64
	misses   uint64
	now      func() time.Time
}

// NewResultCache creates a cache holding at most capacity entries, each
// living at most ttl.
func NewResultCache(capacity int, ttl time.Duration) *ResultCache {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ResultCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns a copy of the cached result and marks the entry most recently
// used. An expired entry is removed on the spot and reported as a miss.
func (c *ResultCache) Get(key string) (ResultSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return ResultSet{}, false
	}

	entry := elem.Value.(*cacheEntry)
	now := c.now()
	if now.Sub(entry.createdAt) > c.ttl {
		c.removeLocked(elem)
		c.misses++
		return ResultSet{}, false
	}

	entry.lastAccess = now
	entry.hits++
	c.order.MoveToFront(elem)
	c.hits++
	return entry.result.clone(), true
}

// Set inserts or overwrites an entry with a fresh timestamp. When the cache
// is full the least recently used entry is evicted first.
func (c *ResultCache) Set(key string, result ResultSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.result = result.clone()
		entry.createdAt = now
		entry.lastAccess = now
		c.order.MoveToFront(elem)
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}

	entry := &cacheEntry{
		key:        key,
		result:     result.clone(),
		createdAt:  now,
		lastAccess: now,
	}
	c.entries[key] = c.order.PushFront(entry)
}

// InvalidateExpired removes every entry older than the TTL and returns the
// number removed. Safe to call concurrently with Get and Set.
func (c *ResultCache) InvalidateExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*cacheEntry)
		if now.Sub(entry.createdAt) > c.ttl {
			c.removeLocked(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Clear removes all entries and returns the number removed. Hit and miss
// counters are kept; they describe lifetime traffic, not current contents.
func (c *ResultCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.entries)
	c.entries = make(map[string]*list.Element, c.capacity)
	c.order.Init()
	return removed
}

// Len returns the current entry count.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a point-in-time snapshot of cache counters and size.
func (c *ResultCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     len(c.entries),
		Capacity: c.capacity,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	for _, elem := range c.entries {
		stats.EstimatedBytes += estimateEntryBytes(elem.Value.(*cacheEntry))
	}
	return stats
}

// TopEntries returns up to n entries ordered by hit count descending.
func (c *ResultCache) TopEntries(n int) []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	infos := make([]EntryInfo, 0, len(c.entries))
	for _, elem := range c.entries {
		entry := elem.Value.(*cacheEntry)
		infos = append(infos, EntryInfo{
			Key:       entry.key,
			Hits:      entry.hits,
			Age:       now.Sub(entry.createdAt),
			Resources: len(entry.result.Items),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Hits != infos[j].Hits {
			return infos[i].Hits > infos[j].Hits
		}
		return infos[i].Key < infos[j].Key
	})
	if n > 0 && len(infos) > n {
		infos = infos[:n]
	}
	return infos
}

func (c *ResultCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.order.Remove(elem)
}

func estimateEntryBytes(entry *cacheEntry) int64 {
	size := int64(len(entry.key)) + entryOverheadBytes
	for _, item := range entry.result.Items {
		size += int64(len(item.ID)+len(item.Title)+len(item.Type)) + itemOverheadBytes
	}
	for _, t := range entry.result.Types {
		size += int64(len(t))
	}
	return size
}

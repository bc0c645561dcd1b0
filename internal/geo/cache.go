package geo

import (
	"container/list"
	"sync"
	"time"
)

// CacheEntry represents a cached value
type CacheEntry struct {
	Key       string
	Value     interface{}
	Timestamp time.Time
	Size      int
}

// LRUCache implements a thread-safe LRU cache with optional TTL.
// A zero ttl disables expiry.
type LRUCache struct {
	capacity  int
	ttl       time.Duration
	items     map[string]*list.Element
	evictList *list.List
	mu        sync.RWMutex

	// Metrics
	hits   uint64
	misses uint64
}

// NewLRUCache creates a new LRU cache
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache{
		capacity:  capacity,
		ttl:       ttl,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Get retrieves a value from the cache
func (c *LRUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*CacheEntry)

		if c.expired(entry, time.Now()) {
			c.removeElement(elem)
			c.misses++
			return nil, false
		}

		c.evictList.MoveToFront(elem)
		c.hits++
		return entry.Value, true
	}

	c.misses++
	return nil, false
}

// Set adds or updates a value in the cache
func (c *LRUCache) Set(key string, value interface{}, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.evictList.MoveToFront(elem)
		entry := elem.Value.(*CacheEntry)
		entry.Value = value
		entry.Timestamp = time.Now()
		entry.Size = size
		return
	}

	entry := &CacheEntry{
		Key:       key,
		Value:     value,
		Timestamp: time.Now(),
		Size:      size,
	}

	elem := c.evictList.PushFront(entry)
	c.items[key] = elem

	if c.evictList.Len() > c.capacity {
		c.removeOldest()
	}
}

// Delete removes a key from the cache
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes all entries from the cache
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
}

// Size returns the number of items in the cache
func (c *LRUCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *LRUCache) Stats() (hits, misses uint64, hitRate float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits = c.hits
	misses = c.misses
	total := hits + misses
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return
}

// Clean removes expired entries
func (c *LRUCache) Clean() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl <= 0 {
		return 0
	}

	removed := 0
	now := time.Now()

	// Iterate from oldest to newest
	for elem := c.evictList.Back(); elem != nil; {
		entry := elem.Value.(*CacheEntry)
		if !c.expired(entry, now) {
			break
		}
		prev := elem.Prev()
		c.removeElement(elem)
		removed++
		elem = prev
	}

	return removed
}

func (c *LRUCache) expired(entry *CacheEntry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(entry.Timestamp) > c.ttl
}

// removeOldest removes the oldest entry
func (c *LRUCache) removeOldest() {
	elem := c.evictList.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}

// removeElement removes an element from the cache
func (c *LRUCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*CacheEntry)
	delete(c.items, entry.Key)
	c.evictList.Remove(elem)
}

package vndb

import (
	"sync"
	"time"
)

// cache is an in-memory TTL cache of lookup results. Expired entries are
// dropped lazily on access and when the cache is full.
type cache struct {
	mu       sync.RWMutex
	items    map[string]cacheItem
	ttl      time.Duration
	maxItems int
	now      func() time.Time
}

type cacheItem struct {
	value     []Metadata
	expiresAt time.Time
}

func newCache(ttl time.Duration, maxItems int) *cache {
	if maxItems <= 0 {
		maxItems = 500
	}
	return &cache{
		items:    make(map[string]cacheItem),
		ttl:      ttl,
		maxItems: maxItems,
		now:      time.Now,
	}
}

func (c *cache) get(key string) ([]Metadata, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || c.now().After(item.expiresAt) {
		return nil, false
	}
	return item.value, true
}

func (c *cache) set(key string, value []Metadata) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= c.maxItems {
		c.evictLocked()
	}
	c.items[key] = cacheItem{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictLocked removes expired items, then the one closest to expiry if
// the cache is still full.
func (c *cache) evictLocked() {
	now := c.now()
	var oldestKey string
	var oldest time.Time
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			continue
		}
		if oldestKey == "" || item.expiresAt.Before(oldest) {
			oldestKey, oldest = key, item.expiresAt
		}
	}
	if len(c.items) >= c.maxItems && oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

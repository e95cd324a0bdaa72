// Package cache implements the hot tier (spec §4.6: "hot (≲1 ms) in an
// in-memory KV with TTL"), grounded in the teacher's
// internal/infrastructure/cache/memory_cache.go MemoryCache: a
// container/list LRU ring alongside the map, evicting the least-recently
// used entry once the cache is at capacity (spec §8 "Hot cache at
// capacity evicts by LRU-within-hot before promoting"), plus a
// background goroutine sweeping TTL-expired entries once a minute.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCapacity is used when NewInMemoryHotCache is given a
// non-positive capacity.
const DefaultCapacity = 10_000

type cacheItem struct {
	key       string
	value     []byte
	expiresAt time.Time
	element   *list.Element
}

// InMemoryHotCache implements ports.HotCache. A single instance is
// process-local; a multi-replica deployment would back this with a
// shared KV store instead, but the spec treats the hot tier as a
// rebuildable projection (spec §3 Ownership), so process-local is an
// accepted simplification here.
type InMemoryHotCache struct {
	mu        sync.RWMutex
	items     map[string]*cacheItem
	lru       *list.List
	capacity  int
	evictions int64
	logger    *zap.Logger
}

// NewInMemoryHotCache builds a hot cache bounded at DefaultCapacity
// items and starts its background expiry sweep.
func NewInMemoryHotCache(logger *zap.Logger) *InMemoryHotCache {
	return NewInMemoryHotCacheWithCapacity(DefaultCapacity, logger)
}

// NewInMemoryHotCacheWithCapacity builds a hot cache with an explicit
// LRU-eviction capacity (spec §6 hot_cache_capacity).
func NewInMemoryHotCacheWithCapacity(capacity int, logger *zap.Logger) *InMemoryHotCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &InMemoryHotCache{
		items:    make(map[string]*cacheItem),
		lru:      list.New(),
		capacity: capacity,
		logger:   logger,
	}
	go c.cleanupExpired()
	return c
}

// Set stores value under key with a sliding TTL (spec §4.6 "Hot TTL
// default 1 h (sliding)"), evicting the least-recently-used entry first
// if the cache is already at capacity.
func (c *InMemoryHotCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok {
		existing.value = value
		existing.expiresAt = time.Now().Add(ttl)
		c.lru.MoveToFront(existing.element)
		return nil
	}

	for len(c.items) >= c.capacity {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.evictions++
	}

	item := &cacheItem{key: key, value: value, expiresAt: time.Now().Add(ttl)}
	item.element = c.lru.PushFront(item)
	c.items[key] = item
	return nil
}

// Get returns the value for key, or ok=false on a miss or expiry — a
// miss is not an error; the caller falls through to warm (spec §4.6
// Consistency). A hit counts as the most recent use for LRU purposes.
func (c *InMemoryHotCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, exists := c.items[key]
	if !exists {
		return nil, false, nil
	}
	if time.Now().After(item.expiresAt) {
		c.removeElement(item.element)
		return nil, false, nil
	}
	c.lru.MoveToFront(item.element)
	return item.value, true, nil
}

// Delete removes a key, e.g. on demotion out of the hot tier.
func (c *InMemoryHotCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[key]; ok {
		c.removeElement(item.element)
	}
	return nil
}

// Touch slides a key's expiry forward without rewriting its value, used
// on every hot-tier access (spec §4.6). A miss is a no-op rather than an
// error — the caller's subsequent Get will correctly report the miss.
// Touching also marks the key as most-recently-used.
func (c *InMemoryHotCache) Touch(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, exists := c.items[key]
	if !exists {
		return nil
	}
	item.expiresAt = time.Now().Add(ttl)
	c.lru.MoveToFront(item.element)
	return nil
}

// Len reports the number of resident entries, used by tests exercising
// the capacity boundary.
func (c *InMemoryHotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Evictions reports how many entries have been evicted for capacity
// since construction.
func (c *InMemoryHotCache) Evictions() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evictions
}

// removeElement removes an LRU list element and its map entry. Callers
// must hold c.mu.
func (c *InMemoryHotCache) removeElement(e *list.Element) {
	item := e.Value.(*cacheItem)
	c.lru.Remove(e)
	delete(c.items, item.key)
}

func (c *InMemoryHotCache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for e := c.lru.Back(); e != nil; {
			prev := e.Prev()
			if now.After(e.Value.(*cacheItem).expiresAt) {
				c.removeElement(e)
			}
			e = prev
		}
		c.mu.Unlock()
	}
}

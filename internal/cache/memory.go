package cache

import (
	"context"
	"sync"
	"time"

	"fbadmin/internal/admin"
)

// MemoryCache implements the Cache interface using in-memory storage
type MemoryCache struct {
	data    map[string]cacheEntry
	mutex   sync.Mutex
	maxKeys int
	stats   admin.CacheStats
	now     func() time.Time

	interval time.Duration
	stopOnce sync.Once
	stopChan chan struct{}
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCacheConfig represents configuration for in-memory cache
type MemoryCacheConfig struct {
	MaxKeys         int
	CleanupInterval time.Duration
}

// NewMemoryCache creates a new in-memory cache instance
func NewMemoryCache(config MemoryCacheConfig) (*MemoryCache, error) {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 256
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	cache := &MemoryCache{
		data:     make(map[string]cacheEntry),
		maxKeys:  config.MaxKeys,
		now:      time.Now,
		interval: config.CleanupInterval,
		stopChan: make(chan struct{}),
		stats: admin.CacheStats{
			Type:        admin.CacheTypeMemory.String(),
			LastUpdated: time.Now(),
		},
	}

	go cache.runCleanup()

	return cache, nil
}

// Get retrieves a value by key. Expired entries are removed on read.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.data[key]
	if exists && entry.expired(c.now()) {
		delete(c.data, key)
		exists = false
	}
	if !exists {
		c.stats.Misses++
		return nil, admin.ErrCacheKeyNotFound
	}

	c.stats.Hits++
	return entry.value, nil
}

// Set stores a value with TTL. When full, the entry closest to expiry is evicted.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxKeys {
		c.evictLocked(now)
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	c.data[key] = cacheEntry{
		value:     stored,
		expiresAt: expiresAt,
	}
	c.stats.LastUpdated = now

	return nil
}

// evictLocked drops expired entries, then the soonest-expiring one if still full
func (c *MemoryCache) evictLocked(now time.Time) {
	for k, entry := range c.data {
		if entry.expired(now) {
			delete(c.data, k)
		}
	}
	if len(c.data) < c.maxKeys {
		return
	}

	victim := ""
	var victimExpiry time.Time
	for k, entry := range c.data {
		switch {
		case victim == "":
			victim, victimExpiry = k, entry.expiresAt
		case entry.expiresAt.IsZero():
		case victimExpiry.IsZero() || entry.expiresAt.Before(victimExpiry):
			victim, victimExpiry = k, entry.expiresAt
		}
	}
	delete(c.data, victim)
}

// Delete removes a key from cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.data[key]; exists {
		delete(c.data, key)
		c.stats.LastUpdated = c.now()
	}

	return nil
}

// Close stops the janitor. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	return nil
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() admin.CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stats := c.stats
	stats.Keys = int64(len(c.data))
	return stats
}

func (c *MemoryCache) runCleanup() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopChan:
			return
		}
	}
}

// cleanup removes expired entries
func (c *MemoryCache) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for key, entry := range c.data {
		if entry.expired(now) {
			delete(c.data, key)
		}
	}
	c.stats.LastUpdated = now
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"fbadmin/internal/admin"
)

// RedisCache implements the Cache interface using Redis. Every key is stored
// under KeyPrefix so several tools can share one database.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string

	hits        atomic.Int64
	misses      atomic.Int64
	lastUpdated atomic.Int64
}

// RedisCacheConfig represents Redis cache configuration
type RedisCacheConfig struct {
	Address      string
	Password     string
	DB           int
	KeyPrefix    string
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

// NewRedisCache creates a new Redis cache instance. Address may be a redis://
// URL or a bare host:port.
func NewRedisCache(config RedisCacheConfig) (*RedisCache, error) {
	address := config.Address
	if !strings.Contains(address, "://") {
		address = "redis://" + address
	}

	opt, err := redis.ParseURL(address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.Password != "" {
		opt.Password = config.Password
	}
	if config.DB != 0 {
		opt.DB = config.DB
	}
	opt.MaxRetries = config.MaxRetries
	opt.PoolSize = config.PoolSize
	opt.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := &RedisCache{
		client:    client,
		keyPrefix: config.KeyPrefix,
	}
	c.touch()
	return c, nil
}

func (c *RedisCache) key(key string) string {
	return c.keyPrefix + key
}

func (c *RedisCache) touch() {
	c.lastUpdated.Store(time.Now().UnixNano())
}

// Get retrieves a value by key
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return nil, admin.ErrCacheKeyNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	c.hits.Add(1)
	return value, nil
}

// Set stores a value with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	c.touch()
	return nil
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	c.touch()
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Stats returns cache statistics. Keys counts only keys under the prefix.
func (c *RedisCache) Stats() admin.CacheStats {
	stats := admin.CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		LastUpdated: time.Unix(0, c.lastUpdated.Load()),
		Type:        admin.CacheTypeRedis.String(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.keyPrefix+"*", 100).Result()
		if err != nil {
			break
		}
		stats.Keys += int64(len(keys))
		if next == 0 {
			break
		}
		cursor = next
	}

	return stats
}

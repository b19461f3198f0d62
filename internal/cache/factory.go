package cache

import (
	"fmt"

	"fbadmin/internal/admin"
)

// NewCache creates a cache based on the provided configuration.
// Falls back to memory cache if Redis is unreachable or not configured.
func NewCache(config admin.CacheConfig, logger admin.Logger) (admin.Cache, error) {
	switch config.Type {
	case admin.CacheTypeRedis:
		return createRedisCache(config, logger)
	default:
		return createMemoryCache(config, logger)
	}
}

func createRedisCache(config admin.CacheConfig, logger admin.Logger) (admin.Cache, error) {
	if config.RedisURL == "" {
		logger.Info("Redis URL not configured, falling back to memory cache")
		return createMemoryCache(config, logger)
	}

	logger.Debug("connecting to Redis", "url", config.RedisURL, "db", config.RedisDB)

	redisCache, err := NewRedisCache(RedisCacheConfig{
		Address:      config.RedisURL,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		KeyPrefix:    config.KeyPrefix,
		MaxRetries:   3,
		PoolSize:     4,
		MinIdleConns: 1,
	})
	if err != nil {
		logger.Warn("failed to connect to Redis, falling back to memory cache", "error", err)
		return createMemoryCache(config, logger)
	}

	logger.Debug("token cache ready", "type", "redis")
	return redisCache, nil
}

func createMemoryCache(config admin.CacheConfig, logger admin.Logger) (admin.Cache, error) {
	memoryCache, err := NewMemoryCache(MemoryCacheConfig{
		MaxKeys:         config.MaxKeys,
		CleanupInterval: config.CleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	logger.Debug("token cache ready", "type", "memory", "max_keys", config.MaxKeys)
	return memoryCache, nil
}

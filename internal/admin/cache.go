package admin

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CacheType represents cache implementation types
type CacheType int

const (
	CacheTypeMemory CacheType = iota
	CacheTypeRedis
)

// String returns the string representation of the cache type
func (c CacheType) String() string {
	switch c {
	case CacheTypeRedis:
		return "redis"
	default:
		return "memory"
	}
}

// ParseCacheType parses a string to CacheType
func ParseCacheType(s string) CacheType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "redis":
		return CacheTypeRedis
	default:
		return CacheTypeMemory
	}
}

// UnmarshalYAML accepts the cache type by name
func (c *CacheType) UnmarshalYAML(unmarshal func(any) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return fmt.Errorf("cache type must be a string: %w", err)
	}
	*c = ParseCacheType(name)
	return nil
}

// MarshalYAML writes the cache type by name
func (c CacheType) MarshalYAML() (any, error) {
	return c.String(), nil
}

// Cache defines key-value storage with TTL support.
// It holds short-lived access tokens keyed by scope set.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheKeyNotFound if key doesn't exist
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with TTL. TTL of 0 means no expiration
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error

	// Close closes the cache connection and cleans up resources
	Close() error

	// Stats returns cache statistics for monitoring
	Stats() CacheStats
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Keys        int64     `json:"keys"`
	LastUpdated time.Time `json:"last_updated"`
	Type        string    `json:"type"`
}

package cache

import (
	"time"
)

// Cache is a string key/value store with TTL. The ingestion pipeline
// uses it to remember content hashes of completed documents so repeat
// runs can skip identical sources.
type Cache interface {
	Get(key string) (value string, found bool, err error)
	Set(key string, value string, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Factory builds a cache implementation from a config.
type Factory func(config Config) (Cache, error)

var registry = make(map[string]Factory)

// RegisterCache registers a cache implementation under a type name.
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache creates a cache for the configured type, defaulting to the
// in-memory implementation.
func NewCache(config Config) (Cache, error) {
	if factory, ok := registry[config.Type]; ok {
		return factory(config)
	}
	return NewMemoryCache(config)
}

// Config holds cache settings.
type Config struct {
	// Type selects the implementation: "memory" or "redis"
	Type string
	// RedisAddr is the redis server address (redis only)
	RedisAddr string
	// RedisPassword is the redis password (redis only)
	RedisPassword string
	// RedisDB is the redis database number (redis only)
	RedisDB int
	// DefaultTTL applies when Set is called with ttl 0
	DefaultTTL time.Duration
	// CleanupInterval controls expired-entry sweeps (memory only)
	CleanupInterval time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		DefaultTTL:      time.Hour * 24,
		CleanupInterval: time.Minute * 10,
	}
}

// DedupKey builds the cache key recording that a content hash has been
// ingested. The stored value is the doc_id that owns the content.
func DedupKey(contentHash string) string {
	return GenerateCacheKey("ingest:hash", contentHash)
}

// GenerateCacheKey joins a prefix and parts into a stable cache key.
func GenerateCacheKey(prefix string, parts ...string) string {
	key := prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

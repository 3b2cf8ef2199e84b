package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// InMemoryCache is the fallback result cache used when no database path is
// configured. Backed by go-cache with exact per-entry TTLs. Eviction is
// lazy: expired entries read as misses, so no janitor goroutine runs.
type InMemoryCache struct {
	c *gocache.Cache
}

// NewInMemoryCache constructs an empty in-memory result cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		c: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get returns the cached value, or a miss once the entry's TTL has elapsed.
func (m *InMemoryCache) Get(key string) (string, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores the value under key with the given TTL, replacing any previous
// entry.
func (m *InMemoryCache) Set(key, value string, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}

// Close is a no-op for the in-memory cache.
func (m *InMemoryCache) Close() error {
	return nil
}

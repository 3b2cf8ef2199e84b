// Package cache memoizes expensive idempotent lookups (search queries, page
// fetches, essay analyses) under namespaced keys with per-entry TTLs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"tutorgate/internal/memory"
)

// TTLs per operation kind.
const (
	SearchTTL = 15 * time.Minute
	PageTTL   = 15 * time.Minute
	EssayTTL  = time.Hour
)

// Cache is the result-cache contract. Get never returns a value past its
// TTL; Set is last-write-wins and resets the TTL. Implementations must be
// safe for concurrent use.
type Cache interface {
	Get(key string) (string, bool)
	Set(key string, value string, ttl time.Duration)
	Close() error
}

// hashPayload produces a stable short digest of the semantically relevant
// input. First 16 bytes of sha256, hex-encoded.
func hashPayload(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:16])
}

// SearchKey derives the cache key for a search query.
func SearchKey(query string) string {
	return "search:" + hashPayload(query)
}

// PageKey derives the cache key for a page fetch.
func PageKey(url string) string {
	return "page:" + hashPayload(url)
}

// EssayKey derives the cache key for an essay analysis. The user identity is
// part of the namespace so identical essays from different users never share
// an entry.
func EssayKey(user, essay string) string {
	return "essay:" + memory.NormalizeUser(user) + ":" + hashPayload(essay)
}

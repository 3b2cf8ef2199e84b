package cache

import (
	"database/sql"
	"fmt"
	"time"

	"tutorgate/internal/logging"
)

// SQLiteCache is the durable result cache. Expired entries behave as misses
// immediately and are evicted lazily on read.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS result_cache (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
`

// NewSQLiteCache initializes the cache table on an open database.
func NewSQLiteCache(db *sql.DB) (*SQLiteCache, error) {
	if _, err := db.Exec(cacheSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &SQLiteCache{db: db, now: time.Now}, nil
}

// Get returns the cached value if it has not expired. An expired row is
// deleted and reported as a miss.
func (c *SQLiteCache) Get(key string) (string, bool) {
	var value string
	var expiresAt int64
	err := c.db.QueryRow(`SELECT value, expires_at FROM result_cache WHERE key = ?`, key).
		Scan(&value, &expiresAt)
	if err != nil {
		if err != sql.ErrNoRows {
			logging.CacheDebug("get %s failed: %v", key, err)
		}
		return "", false
	}

	if c.now().UnixMilli() >= expiresAt {
		if _, err := c.db.Exec(`DELETE FROM result_cache WHERE key = ? AND expires_at = ?`, key, expiresAt); err != nil {
			logging.CacheDebug("evict %s failed: %v", key, err)
		}
		return "", false
	}
	return value, true
}

// Set upserts the value with a fresh TTL. Last write wins.
func (c *SQLiteCache) Set(key, value string, ttl time.Duration) {
	expiresAt := c.now().Add(ttl).UnixMilli()
	if _, err := c.db.Exec(`
		INSERT INTO result_cache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt); err != nil {
		logging.CacheDebug("set %s failed: %v", key, err)
	}
}

// Close is a no-op; the shared database handle is owned by the caller.
func (c *SQLiteCache) Close() error {
	return nil
}

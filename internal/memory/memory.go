// Package memory implements the per-user append-only conversation log with
// bounded retention and wall-clock expiry. Two implementations share one
// contract: SQLite-backed when a database path is configured, in-memory
// otherwise.
package memory

import (
	"context"
	"strings"
	"time"
)

// Role labels one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Retention bounds. A user's log never exceeds RetentionLimit entries and
// entries older than TTL are eligible for expiry.
const (
	RetentionLimit = 50
	TTL            = 24 * time.Hour

	defaultUser  = "anon"
	maxUserIDLen = 64
)

// Message is one immutable conversation entry.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Store is the conversation log contract. Append must enforce retention
// truncation atomically with the insert; Read returns oldest-first and never
// returns expired entries. Both must be safe under concurrent use.
type Store interface {
	Append(ctx context.Context, user string, role Role, content string) error
	Read(ctx context.Context, user string) ([]Message, error)
	Close() error
}

// NormalizeUser maps an arbitrary caller-supplied identity to a bounded
// storage key. Empty becomes "anon"; long identities are truncated to bound
// the key space.
func NormalizeUser(user string) string {
	user = strings.TrimSpace(user)
	if user == "" {
		return defaultUser
	}
	if len(user) > maxUserIDLen {
		return user[:maxUserIDLen]
	}
	return user
}

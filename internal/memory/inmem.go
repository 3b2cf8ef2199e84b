package memory

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is the fallback conversation store used when no database
// path is configured. Same retention and expiry semantics as the SQLite
// store.
type InMemoryStore struct {
	mu   sync.Mutex
	logs map[string][]Message
	now  func() time.Time
}

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		logs: make(map[string][]Message),
		now:  time.Now,
	}
}

// Append adds a message and truncates the user's log to the retention bound
// in the same critical section.
func (s *InMemoryStore) Append(_ context.Context, user string, role Role, content string) error {
	user = NormalizeUser(user)

	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.logs[user], Message{Role: role, Content: content, Timestamp: s.now()})
	log = prune(log, s.now())
	if len(log) > RetentionLimit {
		log = log[len(log)-RetentionLimit:]
	}
	s.logs[user] = log
	return nil
}

// Read returns the user's unexpired messages, oldest first.
func (s *InMemoryStore) Read(_ context.Context, user string) ([]Message, error) {
	user = NormalizeUser(user)

	s.mu.Lock()
	defer s.mu.Unlock()

	log := prune(s.logs[user], s.now())
	s.logs[user] = log

	out := make([]Message, len(log))
	copy(out, log)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

// prune drops entries older than the TTL. The log is append-only so expired
// entries are always a prefix.
func prune(log []Message, now time.Time) []Message {
	cutoff := now.Add(-TTL)
	i := 0
	for i < len(log) && log[i].Timestamp.Before(cutoff) {
		i++
	}
	return log[i:]
}

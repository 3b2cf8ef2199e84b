package memory

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorgate/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "tutorgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// stores under test share one contract; run the suite against both.
func eachStore(t *testing.T, fn func(t *testing.T, s Store, clock *time.Time)) {
	t.Run("inmem", func(t *testing.T) {
		now := time.Now()
		s := NewInMemoryStore()
		s.now = func() time.Time { return now }
		fn(t, s, &now)
	})
	t.Run("sqlite", func(t *testing.T) {
		now := time.Now()
		s, err := NewSQLiteStore(openTestDB(t))
		require.NoError(t, err)
		s.now = func() time.Time { return now }
		fn(t, s, &now)
	})
}

func TestAppendAndReadOrder(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, _ *time.Time) {
		ctx := context.Background()
		require.NoError(t, s.Append(ctx, "alice", RoleUser, "first"))
		require.NoError(t, s.Append(ctx, "alice", RoleAssistant, "second"))
		require.NoError(t, s.Append(ctx, "alice", RoleUser, "third"))

		msgs, err := s.Read(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "first", msgs[0].Content)
		assert.Equal(t, RoleAssistant, msgs[1].Role)
		assert.Equal(t, "third", msgs[2].Content)
	})
}

func TestRetentionBound(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, _ *time.Time) {
		ctx := context.Background()
		total := RetentionLimit + 7
		for i := 0; i < total; i++ {
			require.NoError(t, s.Append(ctx, "bob", RoleUser, fmt.Sprintf("msg-%d", i)))
		}

		msgs, err := s.Read(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, msgs, RetentionLimit)
		// Oldest surviving entry is total-RetentionLimit, order preserved.
		assert.Equal(t, fmt.Sprintf("msg-%d", total-RetentionLimit), msgs[0].Content)
		assert.Equal(t, fmt.Sprintf("msg-%d", total-1), msgs[len(msgs)-1].Content)
	})
}

func TestExpiry(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, clock *time.Time) {
		ctx := context.Background()
		require.NoError(t, s.Append(ctx, "carol", RoleUser, "old"))

		*clock = clock.Add(TTL + time.Minute)
		require.NoError(t, s.Append(ctx, "carol", RoleUser, "fresh"))

		msgs, err := s.Read(ctx, "carol")
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "fresh", msgs[0].Content)
	})
}

func TestUserIsolation(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, _ *time.Time) {
		ctx := context.Background()
		require.NoError(t, s.Append(ctx, "dave", RoleUser, "dave's message"))
		require.NoError(t, s.Append(ctx, "erin", RoleUser, "erin's message"))

		msgs, err := s.Read(ctx, "dave")
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "dave's message", msgs[0].Content)
	})
}

func TestConcurrentAppendsRetainBound(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, _ *time.Time) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 5; j++ {
					_ = s.Append(ctx, "shared", RoleUser, fmt.Sprintf("w%d-%d", i, j))
				}
			}(i)
		}
		wg.Wait()

		msgs, err := s.Read(ctx, "shared")
		require.NoError(t, err)
		assert.Equal(t, RetentionLimit, len(msgs))
	})
}

func TestNormalizeUser(t *testing.T) {
	assert.Equal(t, "anon", NormalizeUser(""))
	assert.Equal(t, "anon", NormalizeUser("   "))
	assert.Equal(t, "alice", NormalizeUser("alice"))

	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	assert.Len(t, NormalizeUser(long), 64)
}

package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tutorgate/internal/logging"
)

// SQLiteStore is the durable conversation store. It shares the process-wide
// SQLite handle opened by internal/storage.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

const conversationSchema = `
CREATE TABLE IF NOT EXISTS conversation_messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_user ON conversation_messages(user_id, id);
`

// NewSQLiteStore initializes the conversation tables on an open database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(conversationSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize conversation schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Append inserts the message and enforces retention inside one transaction,
// so the log never exceeds the bound even under concurrent appends.
func (s *SQLiteStore) Append(ctx context.Context, user string, role Role, content string) error {
	user = NormalizeUser(user)
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_messages (user_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		user, string(role), content, now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	// Lazy expiry plus retention truncation: keep the newest N unexpired rows.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversation_messages WHERE user_id = ? AND created_at < ?`,
		user, now.Add(-TTL).UnixMilli()); err != nil {
		return fmt.Errorf("failed to expire messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM conversation_messages
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM conversation_messages WHERE user_id = ? ORDER BY id DESC LIMIT ?
		)`, user, user, RetentionLimit); err != nil {
		return fmt.Errorf("failed to truncate log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}
	logging.StoreDebug("appended %s message for user %s", role, user)
	return nil
}

// Read returns the user's unexpired messages, oldest first.
func (s *SQLiteStore) Read(ctx context.Context, user string) ([]Message, error) {
	user = NormalizeUser(user)
	cutoff := s.now().Add(-TTL).UnixMilli()

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM conversation_messages
		WHERE user_id = ? AND created_at >= ?
		ORDER BY id ASC`, user, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var role, content string
		var createdAt int64
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, Message{
			Role:      Role(role),
			Content:   content,
			Timestamp: time.UnixMilli(createdAt),
		})
	}
	return messages, rows.Err()
}

// Close is a no-op; the shared database handle is owned by the caller.
func (s *SQLiteStore) Close() error {
	return nil
}

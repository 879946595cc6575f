package history

import (
	"context"
	"fmt"

	"github.com/uspq/neko-ai/internal/database"
	"github.com/uspq/neko-ai/internal/types"
)

// SqliteLog is a persistent HistoryLog backed by the shared SQLite database.
// Appends target the history table created by the database migrations; the
// composite primary key (conversation_id, created_at) enforces idempotency.
type SqliteLog struct {
	db *database.DB
}

// NewSqliteLog creates a HistoryLog over an open database connection.
func NewSqliteLog(db *database.DB) *SqliteLog {
	return &SqliteLog{db: db}
}

// Append logs one turn. Duplicate (conversation, timestamp) keys are ignored.
func (l *SqliteLog) Append(ctx context.Context, entry Entry) error {
	if entry.ConversationID.IsZero() {
		return types.NewError(ErrCodeHistoryInvalidEntry, "history entry conversation id cannot be empty")
	}
	if entry.MemoryID.IsZero() {
		return types.NewError(ErrCodeHistoryInvalidEntry, "history entry memory id cannot be empty")
	}
	if entry.Timestamp.IsZero() {
		return types.NewError(ErrCodeHistoryInvalidEntry, "history entry timestamp cannot be zero")
	}

	_, err := l.db.Conn().ExecContext(ctx, `
		INSERT OR IGNORE INTO history (conversation_id, created_at, memory_id, user_text, agent_text)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ConversationID.String(), entry.Timestamp.UTC(), entry.MemoryID.String(), entry.UserText, entry.AgentText)
	if err != nil {
		return types.WrapRetryableError(ErrCodeHistoryAppendFailed, "failed to append history entry", err)
	}

	return nil
}

// Window returns up to size entries, most-recent first.
func (l *SqliteLog) Window(ctx context.Context, conversationID types.ID, size int) ([]Entry, error) {
	if size <= 0 {
		return nil, nil
	}

	rows, err := l.db.Conn().QueryContext(ctx, `
		SELECT conversation_id, created_at, memory_id, user_text, agent_text
		FROM history
		WHERE conversation_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, conversationID.String(), size)
	if err != nil {
		return nil, types.WrapRetryableError(ErrCodeHistoryQueryFailed, "failed to query history window", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var convID, memID string
		if err := rows.Scan(&convID, &entry.Timestamp, &memID, &entry.UserText, &entry.AgentText); err != nil {
			return nil, types.WrapError(ErrCodeHistoryQueryFailed, "failed to scan history entry", err)
		}
		entry.ConversationID = types.ID(convID)
		entry.MemoryID = types.ID(memID)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// DeleteConversation removes all entries for the conversation.
func (l *SqliteLog) DeleteConversation(ctx context.Context, conversationID types.ID) (int, error) {
	result, err := l.db.Conn().ExecContext(ctx,
		`DELETE FROM history WHERE conversation_id = ?`, conversationID.String())
	if err != nil {
		return 0, types.WrapRetryableError(ErrCodeHistoryDeleteFailed, "failed to delete conversation history", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, types.WrapError(ErrCodeHistoryDeleteFailed, "failed to read rows affected", err)
	}

	return int(affected), nil
}

// DeleteMemory removes the entry for a single memory, if present.
func (l *SqliteLog) DeleteMemory(ctx context.Context, memoryID types.ID) error {
	_, err := l.db.Conn().ExecContext(ctx,
		`DELETE FROM history WHERE memory_id = ?`, memoryID.String())
	if err != nil {
		return types.WrapRetryableError(ErrCodeHistoryDeleteFailed, "failed to delete history entry", err)
	}
	return nil
}

// Count returns the number of entries for the conversation.
func (l *SqliteLog) Count(ctx context.Context, conversationID types.ID) (int, error) {
	var count int
	var err error
	if conversationID.IsZero() {
		err = l.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&count)
	} else {
		err = l.db.Conn().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM history WHERE conversation_id = ?`, conversationID.String()).Scan(&count)
	}
	if err != nil {
		return 0, types.WrapRetryableError(ErrCodeHistoryQueryFailed, "failed to count history entries", err)
	}
	return count, nil
}

// Health returns the current health status of the history log.
func (l *SqliteLog) Health(ctx context.Context) types.HealthStatus {
	if err := l.db.Ping(ctx); err != nil {
		return types.Unhealthy(fmt.Sprintf("database ping failed: %v", err))
	}

	var count int
	if err := l.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&count); err != nil {
		return types.Degraded(fmt.Sprintf("failed to count history rows: %v", err))
	}

	return types.Healthy(fmt.Sprintf("history log operational with %d rows", count))
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uspq/neko-ai/internal/types"
)

// ConversationSettings controls which memory behaviors apply to a conversation.
type ConversationSettings struct {
	// MemoryEnabled gates the write pipeline and fusion retrieval entirely.
	MemoryEnabled bool `json:"memory_enabled"`

	// CrossConversation allows retrieval and edges to reach other
	// conversations, subject to the cross-conversation threshold.
	CrossConversation bool `json:"cross_conversation"`

	// ForgettingEnabled opts the conversation into the periodic decay pass.
	ForgettingEnabled bool `json:"forgetting_enabled"`
}

// DefaultConversationSettings returns the settings applied to new conversations.
func DefaultConversationSettings() ConversationSettings {
	return ConversationSettings{
		MemoryEnabled:     true,
		CrossConversation: false,
		ForgettingEnabled: true,
	}
}

// Conversation represents an isolated context grouping a sequence of turns.
type Conversation struct {
	ID           types.ID             `db:"id" json:"id"`
	Title        string               `db:"title" json:"title"`
	Settings     ConversationSettings `db:"settings" json:"settings"`
	MessageCount int                  `db:"message_count" json:"message_count"`
	CreatedAt    time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `db:"updated_at" json:"updated_at"`
}

// ConversationDAO provides data access operations for conversations.
type ConversationDAO struct {
	db *DB
}

// NewConversationDAO creates a new ConversationDAO.
func NewConversationDAO(db *DB) *ConversationDAO {
	return &ConversationDAO{db: db}
}

// Create inserts a new conversation. The ID must be set by the caller.
func (d *ConversationDAO) Create(ctx context.Context, conv *Conversation) error {
	if err := conv.ID.Validate(); err != nil {
		return types.WrapError(types.CONVERSATION_INVALID, "invalid conversation id", err)
	}

	settingsJSON, err := json.Marshal(conv.Settings)
	if err != nil {
		return types.WrapError(types.CONVERSATION_INVALID, "failed to serialize settings", err)
	}

	now := time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now

	_, err = d.db.conn.ExecContext(ctx, `
		INSERT INTO conversations (id, title, settings, message_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, conv.ID.String(), conv.Title, string(settingsJSON), conv.MessageCount, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to insert conversation", err)
	}

	return nil
}

// Get retrieves a conversation by ID.
// Returns a CONVERSATION_NOT_FOUND error if no row exists.
func (d *ConversationDAO) Get(ctx context.Context, id types.ID) (*Conversation, error) {
	row := d.db.conn.QueryRowContext(ctx, `
		SELECT id, title, settings, message_count, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id.String())

	var conv Conversation
	var idStr, settingsJSON string
	err := row.Scan(&idStr, &conv.Title, &settingsJSON, &conv.MessageCount, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.CONVERSATION_NOT_FOUND,
			fmt.Sprintf("conversation not found: %s", id))
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to query conversation", err)
	}

	conv.ID = types.ID(idStr)
	if err := json.Unmarshal([]byte(settingsJSON), &conv.Settings); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to parse conversation settings", err)
	}

	return &conv, nil
}

// List returns all conversations ordered by most recently updated.
func (d *ConversationDAO) List(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.db.conn.QueryContext(ctx, `
		SELECT id, title, settings, message_count, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to list conversations", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		var idStr, settingsJSON string
		if err := rows.Scan(&idStr, &conv.Title, &settingsJSON, &conv.MessageCount, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan conversation", err)
		}
		conv.ID = types.ID(idStr)
		if err := json.Unmarshal([]byte(settingsJSON), &conv.Settings); err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to parse conversation settings", err)
		}
		conversations = append(conversations, conv)
	}

	return conversations, rows.Err()
}

// Count returns the total number of conversations.
func (d *ConversationDAO) Count(ctx context.Context) (int, error) {
	var count int
	err := d.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&count)
	if err != nil {
		return 0, types.WrapError(types.DB_QUERY_FAILED, "failed to count conversations", err)
	}
	return count, nil
}

// IncrementMessageCount bumps the monotonic message counter and refreshes
// the updated_at timestamp.
func (d *ConversationDAO) IncrementMessageCount(ctx context.Context, id types.ID) error {
	result, err := d.db.conn.ExecContext(ctx, `
		UPDATE conversations
		SET message_count = message_count + 1, updated_at = ?
		WHERE id = ?
	`, time.Now(), id.String())
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to increment message count", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to read rows affected", err)
	}
	if affected == 0 {
		return types.NewError(types.CONVERSATION_NOT_FOUND,
			fmt.Sprintf("conversation not found: %s", id))
	}

	return nil
}

// UpdateSettings replaces the settings record for a conversation.
func (d *ConversationDAO) UpdateSettings(ctx context.Context, id types.ID, settings ConversationSettings) error {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return types.WrapError(types.CONVERSATION_INVALID, "failed to serialize settings", err)
	}

	result, err := d.db.conn.ExecContext(ctx, `
		UPDATE conversations SET settings = ?, updated_at = ? WHERE id = ?
	`, string(settingsJSON), time.Now(), id.String())
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to update settings", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to read rows affected", err)
	}
	if affected == 0 {
		return types.NewError(types.CONVERSATION_NOT_FOUND,
			fmt.Sprintf("conversation not found: %s", id))
	}

	return nil
}

// Delete removes a conversation row. History rows are removed separately by
// the history DAO so deletion outcomes can be reported per store.
func (d *ConversationDAO) Delete(ctx context.Context, id types.ID) error {
	_, err := d.db.conn.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id.String())
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to delete conversation", err)
	}
	return nil
}

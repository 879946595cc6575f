package history

import (
	"context"
	"time"

	"github.com/uspq/neko-ai/internal/types"
)

// Entry is one logged turn, most-recent first in Window results.
// Timestamp and conversation id ride along so callers never need a second
// round-trip to resolve them.
type Entry struct {
	ConversationID types.ID  `json:"conversation_id"`
	MemoryID       types.ID  `json:"memory_id"`
	UserText       string    `json:"user_text"`
	AgentText      string    `json:"agent_text"`
	Timestamp      time.Time `json:"timestamp"`
}

// HistoryLog is an append-only per-conversation message log with
// sliding-window reads. Implementations must be thread-safe.
type HistoryLog interface {
	// Append logs one turn. It is idempotent keyed by
	// (conversationID, timestamp): a duplicate append with the same key is a
	// no-op, not an error, so write retries are safe.
	Append(ctx context.Context, entry Entry) error

	// Window returns up to size entries for the conversation, most-recent
	// first. It never returns entries from another conversation.
	Window(ctx context.Context, conversationID types.ID, size int) ([]Entry, error)

	// DeleteConversation removes all entries for the conversation and
	// returns how many were removed.
	DeleteConversation(ctx context.Context, conversationID types.ID) (int, error)

	// DeleteMemory removes the entry for a single memory, if present.
	DeleteMemory(ctx context.Context, memoryID types.ID) error

	// Count returns the number of entries for the conversation, or the total
	// entry count when conversationID is zero.
	Count(ctx context.Context, conversationID types.ID) (int, error)

	// Health returns the health status of the log.
	Health(ctx context.Context) types.HealthStatus
}

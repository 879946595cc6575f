package vector

import (
	"context"

	"github.com/uspq/neko-ai/internal/types"
)

// VectorStore provides vector-based semantic search scoped to conversations.
// Implementations must be thread-safe for concurrent access.
type VectorStore interface {
	// Insert adds a single vector record to the store.
	Insert(ctx context.Context, record Record) error

	// Search finds similar records by embedding vector. Results are ordered
	// by score descending, ties broken by most-recent timestamp, and carry
	// the record's timestamp and conversation id inline.
	Search(ctx context.Context, query Query) ([]Result, error)

	// Get retrieves a specific record by ID.
	Get(ctx context.Context, id types.ID) (*Record, error)

	// Delete removes a record from the store.
	Delete(ctx context.Context, id types.ID) error

	// DeleteByConversation removes every record belonging to the
	// conversation and returns how many were removed.
	DeleteByConversation(ctx context.Context, conversationID types.ID) (int, error)

	// Count returns the number of stored records, optionally scoped to one
	// conversation (zero ID counts everything).
	Count(ctx context.Context, conversationID types.ID) (int, error)

	// Health returns the health status of the vector store.
	Health(ctx context.Context) types.HealthStatus

	// Close releases all resources held by the vector store.
	Close() error
}

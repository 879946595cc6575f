package vector

import (
	"fmt"
	"time"

	"github.com/uspq/neko-ai/internal/types"
)

// Record represents a stored vector with its owning conversation and
// timestamp inline, so search results never need a side lookup for
// tie-breaking or isolation checks.
type Record struct {
	ID             types.ID  `json:"id"`
	ConversationID types.ID  `json:"conversation_id"`
	Content        string    `json:"content"`
	Embedding      []float64 `json:"embedding"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewRecord creates a new Record.
func NewRecord(id, conversationID types.ID, content string, embedding []float64, timestamp time.Time) *Record {
	return &Record{
		ID:             id,
		ConversationID: conversationID,
		Content:        content,
		Embedding:      embedding,
		Timestamp:      timestamp,
	}
}

// Validate ensures the Record has valid fields.
func (r *Record) Validate() error {
	if r.ID.IsZero() {
		return types.NewError(ErrCodeVectorStoreFailed, "vector record ID cannot be empty")
	}
	if r.ConversationID.IsZero() {
		return types.NewError(ErrCodeVectorStoreFailed, "vector record conversation ID cannot be empty")
	}
	if len(r.Embedding) == 0 {
		return types.NewError(ErrCodeVectorStoreFailed, "vector record embedding cannot be empty")
	}
	if r.Timestamp.IsZero() {
		return types.NewError(ErrCodeVectorStoreFailed, "vector record timestamp cannot be zero")
	}
	return nil
}

// Dimensions returns the dimensionality of the embedding vector.
func (r *Record) Dimensions() int {
	return len(r.Embedding)
}

// Query represents a vector search query. A zero ConversationID searches
// across all conversations; callers opting into cross-conversation retrieval
// do so explicitly through that field.
type Query struct {
	Embedding      []float64 `json:"embedding"`
	TopK           int       `json:"top_k"`
	ConversationID types.ID  `json:"conversation_id,omitempty"` // zero means ALL
	MinScore       float64   `json:"min_score,omitempty"`
}

// NewQuery creates a conversation-scoped query from a pre-computed embedding.
func NewQuery(embedding []float64, topK int, conversationID types.ID) *Query {
	return &Query{
		Embedding:      embedding,
		TopK:           topK,
		ConversationID: conversationID,
	}
}

// WithMinScore sets the minimum similarity score threshold.
// Returns the query for method chaining.
func (q *Query) WithMinScore(minScore float64) *Query {
	q.MinScore = minScore
	return q
}

// Validate ensures the Query has valid fields.
func (q *Query) Validate() error {
	if len(q.Embedding) == 0 {
		return types.NewError(ErrCodeVectorSearchFailed, "vector query must have an embedding")
	}
	if q.TopK <= 0 {
		return types.NewError(ErrCodeVectorSearchFailed,
			fmt.Sprintf("vector query top_k must be greater than 0, got %d", q.TopK))
	}
	if q.MinScore < 0 || q.MinScore > 1 {
		return types.NewError(ErrCodeVectorSearchFailed,
			fmt.Sprintf("vector query min_score must be between 0 and 1, got %f", q.MinScore))
	}
	return nil
}

// Result represents a vector search result with similarity score.
type Result struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"` // Cosine similarity (0-1, higher is better)
}

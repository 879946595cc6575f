package vector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/uspq/neko-ai/internal/types"
)

const chromemCollection = "memories"

// ChromemStore is an in-process vector store backed by chromem-go, a pure Go
// embedded vector database. Non-persistent; the default backend for
// development and tests. Conversation scoping uses chromem metadata filters,
// with a sidecar index keeping per-conversation bookkeeping for counts and
// cascade deletes.
type ChromemStore struct {
	mu     sync.RWMutex
	db     *chromem.DB
	col    *chromem.Collection
	dims   int
	byConv map[types.ID]map[types.ID]struct{}
	byID   map[types.ID]types.ID // memory id -> conversation id
	closed bool
}

// NewChromemStore creates a new in-memory chromem-backed vector store.
func NewChromemStore(dims int) (*ChromemStore, error) {
	if dims <= 0 {
		return nil, types.NewError(ErrCodeInvalidConfig,
			fmt.Sprintf("dimensions must be positive, got %d", dims))
	}

	db := chromem.NewDB()
	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := db.GetOrCreateCollection(chromemCollection, nil, nil)
	if err != nil {
		return nil, types.WrapError(ErrCodeVectorStoreUnavailable, "failed to create collection", err)
	}

	return &ChromemStore{
		db:     db,
		col:    col,
		dims:   dims,
		byConv: make(map[types.ID]map[types.ID]struct{}),
		byID:   make(map[types.ID]types.ID),
	}, nil
}

// Insert adds a single vector record to the store.
func (s *ChromemStore) Insert(ctx context.Context, record Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	if len(record.Embedding) != s.dims {
		return types.NewError(ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding dimensions mismatch: expected %d, got %d", s.dims, len(record.Embedding)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	doc := chromem.Document{
		ID:        record.ID.String(),
		Content:   record.Content,
		Embedding: toFloat32(record.Embedding),
		Metadata: map[string]string{
			"conversation_id": record.ConversationID.String(),
			"created_at":      record.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}

	if err := s.col.AddDocument(ctx, doc); err != nil {
		return types.WrapError(ErrCodeVectorStoreFailed, "failed to add document", err)
	}

	if _, ok := s.byConv[record.ConversationID]; !ok {
		s.byConv[record.ConversationID] = make(map[types.ID]struct{})
	}
	s.byConv[record.ConversationID][record.ID] = struct{}{}
	s.byID[record.ID] = record.ConversationID

	return nil
}

// Search finds similar records by embedding vector.
func (s *ChromemStore) Search(ctx context.Context, query Query) ([]Result, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	if len(query.Embedding) != s.dims {
		return nil, types.NewError(ErrCodeDimensionMismatch,
			fmt.Sprintf("query embedding dimensions mismatch: expected %d, got %d",
				s.dims, len(query.Embedding)))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	var where map[string]string
	available := len(s.byID)
	if !query.ConversationID.IsZero() {
		where = map[string]string{"conversation_id": query.ConversationID.String()}
		available = len(s.byConv[query.ConversationID])
	}

	// chromem requires nResults <= number of matching documents.
	n := query.TopK
	if n > available {
		n = available
	}
	if n == 0 {
		return nil, nil
	}

	raw, err := s.col.QueryEmbedding(ctx, toFloat32(query.Embedding), n, where, nil)
	if err != nil {
		return nil, types.WrapError(ErrCodeVectorSearchFailed, "chromem query failed", err)
	}

	var results []Result
	for _, r := range raw {
		score := float64(r.Similarity)
		if score < query.MinScore {
			continue
		}

		timestamp, err := time.Parse(time.RFC3339Nano, r.Metadata["created_at"])
		if err != nil {
			return nil, types.WrapError(ErrCodeVectorSearchFailed,
				fmt.Sprintf("malformed created_at on document %s", r.ID), err)
		}

		results = append(results, Result{
			Record: Record{
				ID:             types.ID(r.ID),
				ConversationID: types.ID(r.Metadata["conversation_id"]),
				Content:        r.Content,
				Embedding:      toFloat64(r.Embedding),
				Timestamp:      timestamp,
			},
			Score: score,
		})
	}

	sortResults(results)
	return results, nil
}

// Get retrieves a specific record by ID.
func (s *ChromemStore) Get(ctx context.Context, id types.ID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	doc, err := s.col.GetByID(ctx, id.String())
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, types.NewError(ErrCodeVectorNotFound, fmt.Sprintf("vector record not found: %s", id))
		}
		return nil, types.WrapError(ErrCodeVectorSearchFailed, "failed to get document", err)
	}

	timestamp, err := time.Parse(time.RFC3339Nano, doc.Metadata["created_at"])
	if err != nil {
		return nil, types.WrapError(ErrCodeVectorSearchFailed,
			fmt.Sprintf("malformed created_at on document %s", id), err)
	}

	return &Record{
		ID:             types.ID(doc.ID),
		ConversationID: types.ID(doc.Metadata["conversation_id"]),
		Content:        doc.Content,
		Embedding:      toFloat64(doc.Embedding),
		Timestamp:      timestamp,
	}, nil
}

// Delete removes a record from the store.
func (s *ChromemStore) Delete(ctx context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	convID, ok := s.byID[id]
	if !ok {
		return nil
	}

	if err := s.col.Delete(ctx, nil, nil, id.String()); err != nil {
		return types.WrapError(ErrCodeVectorStoreFailed, "failed to delete document", err)
	}

	delete(s.byID, id)
	delete(s.byConv[convID], id)
	if len(s.byConv[convID]) == 0 {
		delete(s.byConv, convID)
	}

	return nil
}

// DeleteByConversation removes every record belonging to the conversation.
func (s *ChromemStore) DeleteByConversation(ctx context.Context, conversationID types.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	ids := s.byConv[conversationID]
	if len(ids) == 0 {
		return 0, nil
	}

	where := map[string]string{"conversation_id": conversationID.String()}
	if err := s.col.Delete(ctx, where, nil); err != nil {
		return 0, types.WrapError(ErrCodeVectorStoreFailed, "failed to delete conversation documents", err)
	}

	removed := len(ids)
	for id := range ids {
		delete(s.byID, id)
	}
	delete(s.byConv, conversationID)

	return removed, nil
}

// Count returns the number of stored records, optionally per conversation.
func (s *ChromemStore) Count(ctx context.Context, conversationID types.ID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, types.NewError(ErrCodeVectorStoreUnavailable, "vector store is closed")
	}

	if conversationID.IsZero() {
		return len(s.byID), nil
	}
	return len(s.byConv[conversationID]), nil
}

// Health returns the current health status of the vector store.
func (s *ChromemStore) Health(ctx context.Context) types.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return types.Unhealthy("chromem vector store is closed")
	}

	return types.Healthy(fmt.Sprintf("chromem vector store operational with %d records (dims: %d)",
		len(s.byID), s.dims))
}

// Close releases all resources held by the vector store.
func (s *ChromemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.byConv = nil
	s.byID = nil
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/uspq/neko-ai/internal/types"
)

// MockVectorStore is an in-memory VectorStore for testing. It records calls
// and supports injectable errors per operation.
type MockVectorStore struct {
	mu          sync.Mutex
	records     map[types.ID]Record
	calls       []string
	insertError error
	searchError error
	deleteError error
}

// NewMockVectorStore creates a new mock vector store.
func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{
		records: make(map[types.ID]Record),
	}
}

// SetInsertError injects an error returned by subsequent Insert calls.
func (m *MockVectorStore) SetInsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertError = err
}

// SetSearchError injects an error returned by subsequent Search calls.
func (m *MockVectorStore) SetSearchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchError = err
}

// SetDeleteError injects an error returned by subsequent delete calls.
func (m *MockVectorStore) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteError = err
}

// Calls returns the recorded method names in call order.
func (m *MockVectorStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Insert adds a single vector record to the store.
func (m *MockVectorStore) Insert(ctx context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Insert")
	if m.insertError != nil {
		return m.insertError
	}
	if err := record.Validate(); err != nil {
		return err
	}

	m.records[record.ID] = record
	return nil
}

// Search finds similar records by embedding vector using brute-force cosine.
func (m *MockVectorStore) Search(ctx context.Context, query Query) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Search")
	if m.searchError != nil {
		return nil, m.searchError
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var results []Result
	for _, record := range m.records {
		if !query.ConversationID.IsZero() && record.ConversationID != query.ConversationID {
			continue
		}

		score := CosineSimilarity(query.Embedding, record.Embedding)
		if score >= query.MinScore {
			results = append(results, Result{Record: record, Score: score})
		}
	}

	sortResults(results)
	if len(results) > query.TopK {
		results = results[:query.TopK]
	}

	return results, nil
}

// Get retrieves a specific record by ID.
func (m *MockVectorStore) Get(ctx context.Context, id types.ID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Get")
	record, ok := m.records[id]
	if !ok {
		return nil, types.NewError(ErrCodeVectorNotFound, fmt.Sprintf("vector record not found: %s", id))
	}
	return &record, nil
}

// Delete removes a record from the store.
func (m *MockVectorStore) Delete(ctx context.Context, id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Delete")
	if m.deleteError != nil {
		return m.deleteError
	}

	delete(m.records, id)
	return nil
}

// DeleteByConversation removes every record belonging to the conversation.
func (m *MockVectorStore) DeleteByConversation(ctx context.Context, conversationID types.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "DeleteByConversation")
	if m.deleteError != nil {
		return 0, m.deleteError
	}

	removed := 0
	for id, record := range m.records {
		if record.ConversationID == conversationID {
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored records, optionally per conversation.
func (m *MockVectorStore) Count(ctx context.Context, conversationID types.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conversationID.IsZero() {
		return len(m.records), nil
	}

	count := 0
	for _, record := range m.records {
		if record.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

// Health always reports healthy.
func (m *MockVectorStore) Health(ctx context.Context) types.HealthStatus {
	return types.Healthy("mock vector store")
}

// Close releases all resources held by the vector store.
func (m *MockVectorStore) Close() error {
	return nil
}

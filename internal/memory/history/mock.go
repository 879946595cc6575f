package history

import (
	"context"
	"sort"
	"sync"

	"github.com/uspq/neko-ai/internal/types"
)

// MockLog is an in-memory HistoryLog for testing. It records calls and
// supports injectable errors per operation.
type MockLog struct {
	mu          sync.RWMutex
	entries     []Entry
	calls       []string
	appendError error
	windowError error
	deleteError error
}

// NewMockLog creates a new mock history log.
func NewMockLog() *MockLog {
	return &MockLog{}
}

// SetAppendError injects an error returned by subsequent Append calls.
func (m *MockLog) SetAppendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendError = err
}

// SetWindowError injects an error returned by subsequent Window calls.
func (m *MockLog) SetWindowError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windowError = err
}

// SetDeleteError injects an error returned by subsequent delete calls.
func (m *MockLog) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteError = err
}

// Calls returns the recorded method names in call order.
func (m *MockLog) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Append logs one turn, ignoring duplicate (conversation, timestamp) keys.
func (m *MockLog) Append(ctx context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Append")
	if m.appendError != nil {
		return m.appendError
	}

	for _, existing := range m.entries {
		if existing.ConversationID == entry.ConversationID && existing.Timestamp.Equal(entry.Timestamp) {
			return nil
		}
	}

	m.entries = append(m.entries, entry)
	return nil
}

// Window returns up to size entries, most-recent first.
func (m *MockLog) Window(ctx context.Context, conversationID types.ID, size int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Window")
	if m.windowError != nil {
		return nil, m.windowError
	}

	var matched []Entry
	for _, entry := range m.entries {
		if entry.ConversationID == conversationID {
			matched = append(matched, entry)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if len(matched) > size {
		matched = matched[:size]
	}

	return matched, nil
}

// DeleteConversation removes all entries for the conversation.
func (m *MockLog) DeleteConversation(ctx context.Context, conversationID types.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "DeleteConversation")
	if m.deleteError != nil {
		return 0, m.deleteError
	}

	var kept []Entry
	removed := 0
	for _, entry := range m.entries {
		if entry.ConversationID == conversationID {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	m.entries = kept

	return removed, nil
}

// DeleteMemory removes the entry for a single memory, if present.
func (m *MockLog) DeleteMemory(ctx context.Context, memoryID types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "DeleteMemory")
	if m.deleteError != nil {
		return m.deleteError
	}

	var kept []Entry
	for _, entry := range m.entries {
		if entry.MemoryID != memoryID {
			kept = append(kept, entry)
		}
	}
	m.entries = kept

	return nil
}

// Count returns the number of entries for the conversation.
func (m *MockLog) Count(ctx context.Context, conversationID types.ID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, entry := range m.entries {
		if conversationID.IsZero() || entry.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

// Health always reports healthy.
func (m *MockLog) Health(ctx context.Context) types.HealthStatus {
	return types.Healthy("mock history log")
}

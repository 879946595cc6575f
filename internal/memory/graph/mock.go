package graph

import (
	"context"
	"sync"
	"time"

	"github.com/uspq/neko-ai/internal/types"
)

// MockGraphStore is a GraphStore for testing. It delegates storage to an
// in-memory EmbeddedStore while recording calls and allowing error injection.
type MockGraphStore struct {
	mu    sync.Mutex
	inner *EmbeddedStore
	calls []string

	createNodeErr error
	createEdgeErr error
	relatedErr    error
	deleteErr     error
	healthStatus  *types.HealthStatus
}

// NewMockGraphStore creates a new mock graph store.
func NewMockGraphStore() *MockGraphStore {
	return &MockGraphStore{inner: NewEmbeddedStore()}
}

// SetCreateNodeError injects an error returned by CreateNode.
func (m *MockGraphStore) SetCreateNodeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createNodeErr = err
}

// SetCreateEdgeError injects an error returned by CreateEdge.
func (m *MockGraphStore) SetCreateEdgeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createEdgeErr = err
}

// SetRelatedError injects an error returned by RelatedTo.
func (m *MockGraphStore) SetRelatedError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relatedErr = err
}

// SetDeleteError injects an error returned by delete operations.
func (m *MockGraphStore) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

// SetHealthStatus overrides the health status returned by Health.
func (m *MockGraphStore) SetHealthStatus(status types.HealthStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthStatus = &status
}

// Calls returns the ordered list of recorded method names.
func (m *MockGraphStore) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

func (m *MockGraphStore) record(call string) {
	m.calls = append(m.calls, call)
}

// CreateNode implements GraphStore.
func (m *MockGraphStore) CreateNode(ctx context.Context, node Node) error {
	m.mu.Lock()
	m.record("CreateNode")
	err := m.createNodeErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.inner.CreateNode(ctx, node)
}

// CreateEdge implements GraphStore.
func (m *MockGraphStore) CreateEdge(ctx context.Context, edge Edge) error {
	m.mu.Lock()
	m.record("CreateEdge")
	err := m.createEdgeErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.inner.CreateEdge(ctx, edge)
}

// RelatedTo implements GraphStore.
func (m *MockGraphStore) RelatedTo(ctx context.Context, memoryID types.ID, opts TraversalOptions) ([]Related, error) {
	m.mu.Lock()
	m.record("RelatedTo")
	err := m.relatedErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.inner.RelatedTo(ctx, memoryID, opts)
}

// Node implements GraphStore.
func (m *MockGraphStore) Node(ctx context.Context, memoryID types.ID) (*Node, error) {
	m.mu.Lock()
	m.record("Node")
	m.mu.Unlock()
	return m.inner.Node(ctx, memoryID)
}

// Recent implements GraphStore.
func (m *MockGraphStore) Recent(ctx context.Context, conversationID types.ID, limit int) ([]Node, error) {
	m.mu.Lock()
	m.record("Recent")
	m.mu.Unlock()
	return m.inner.Recent(ctx, conversationID, limit)
}

// SearchByKeyword implements GraphStore.
func (m *MockGraphStore) SearchByKeyword(ctx context.Context, keyword string, limit int, conversationID types.ID) ([]Node, error) {
	m.mu.Lock()
	m.record("SearchByKeyword")
	m.mu.Unlock()
	return m.inner.SearchByKeyword(ctx, keyword, limit, conversationID)
}

// TouchUsage implements GraphStore.
func (m *MockGraphStore) TouchUsage(ctx context.Context, memoryIDs []types.ID) error {
	m.mu.Lock()
	m.record("TouchUsage")
	m.mu.Unlock()
	return m.inner.TouchUsage(ctx, memoryIDs)
}

// ExpiredCandidates implements GraphStore.
func (m *MockGraphStore) ExpiredCandidates(ctx context.Context, cutoff time.Time, minEdgeWeight float64, usageFloor int) ([]types.ID, error) {
	m.mu.Lock()
	m.record("ExpiredCandidates")
	m.mu.Unlock()
	return m.inner.ExpiredCandidates(ctx, cutoff, minEdgeWeight, usageFloor)
}

// DeleteNode implements GraphStore.
func (m *MockGraphStore) DeleteNode(ctx context.Context, memoryID types.ID) error {
	m.mu.Lock()
	m.record("DeleteNode")
	err := m.deleteErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.inner.DeleteNode(ctx, memoryID)
}

// DeleteConversation implements GraphStore.
func (m *MockGraphStore) DeleteConversation(ctx context.Context, conversationID types.ID) (int, error) {
	m.mu.Lock()
	m.record("DeleteConversation")
	err := m.deleteErr
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return m.inner.DeleteConversation(ctx, conversationID)
}

// Stats implements GraphStore.
func (m *MockGraphStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	m.record("Stats")
	m.mu.Unlock()
	return m.inner.Stats(ctx)
}

// Health implements GraphStore.
func (m *MockGraphStore) Health(ctx context.Context) types.HealthStatus {
	m.mu.Lock()
	m.record("Health")
	status := m.healthStatus
	m.mu.Unlock()
	if status != nil {
		return *status
	}
	return m.inner.Health(ctx)
}

// Close implements GraphStore.
func (m *MockGraphStore) Close(ctx context.Context) error {
	m.mu.Lock()
	m.record("Close")
	m.mu.Unlock()
	return m.inner.Close(ctx)
}

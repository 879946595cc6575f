package rerank

import (
	"context"
	"strings"
	"sync"

	"github.com/uspq/neko-ai/internal/types"
)

// MockReranker is a deterministic Reranker for testing. It scores documents
// by naive term overlap with the query, so tests can predict the ordering.
type MockReranker struct {
	mu        sync.Mutex
	calls     []string
	rerankErr error
}

// NewMockReranker creates a new mock reranker.
func NewMockReranker() *MockReranker {
	return &MockReranker{}
}

// Rerank scores documents by the fraction of query terms they contain.
func (m *MockReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Ranked, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "Rerank")
	err := m.rerankErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))
	ranked := make([]Ranked, len(documents))
	for i, doc := range documents {
		lower := strings.ToLower(doc)
		hits := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				hits++
			}
		}
		score := 0.0
		if len(terms) > 0 {
			score = float64(hits) / float64(len(terms))
		}
		ranked[i] = Ranked{Index: i, Score: score}
	}

	// Stable selection sort by score descending keeps input order on ties.
	for i := 0; i < len(ranked); i++ {
		best := i
		for j := i + 1; j < len(ranked); j++ {
			if ranked[j].Score > ranked[best].Score {
				best = j
			}
		}
		if best != i {
			picked := ranked[best]
			copy(ranked[i+1:best+1], ranked[i:best])
			ranked[i] = picked
		}
	}

	if topN > 0 && topN < len(ranked) {
		ranked = ranked[:topN]
	}
	return ranked, nil
}

// Model returns the mock model name.
func (m *MockReranker) Model() string {
	return "mock-reranker"
}

// Health reports the mock as healthy unless an error is injected.
func (m *MockReranker) Health(ctx context.Context) types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rerankErr != nil {
		return types.Unhealthy("mock reranker configured to fail")
	}
	return types.Healthy("mock reranker")
}

// Calls returns the ordered list of recorded method names.
func (m *MockReranker) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// SetRerankError configures Rerank() to return an error.
func (m *MockReranker) SetRerankError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rerankErr = err
}

package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
	"sync"

	"github.com/uspq/neko-ai/internal/types"
)

// MockEmbedder is a deterministic Embedder for testing. The same text always
// produces the same unit-length vector, so similarity comparisons are stable
// across runs.
type MockEmbedder struct {
	mu         sync.RWMutex
	dimensions int
	model      string
	calls      []string
	embedError error
	batchError error
}

// NewMockEmbedder creates a new mock embedder with the given dimensionality.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &MockEmbedder{
		dimensions: dimensions,
		model:      "mock-embedder",
	}
}

// Embed generates a deterministic embedding for a single text.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Embed")
	if m.embedError != nil {
		return nil, m.embedError
	}
	return m.generateEmbedding(text), nil
}

// EmbedBatch generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "EmbedBatch")
	if m.batchError != nil {
		return nil, m.batchError
	}
	embeddings := make([][]float64, len(texts))
	for i, text := range texts {
		embeddings[i] = m.generateEmbedding(text)
	}
	return embeddings, nil
}

// generateEmbedding seeds a PRNG from the SHA-256 of the text and emits a
// normalized vector, so identical texts get identical embeddings.
func (m *MockEmbedder) generateEmbedding(text string) []float64 {
	hash := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(hash[:8]))
	rng := rand.New(rand.NewSource(seed))

	embedding := make([]float64, m.dimensions)
	var norm float64
	for i := range embedding {
		embedding[i] = (rng.Float64() * 2) - 1
		norm += embedding[i] * embedding[i]
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range embedding {
			embedding[i] /= norm
		}
	}
	return embedding
}

// Dimensions returns the dimensionality of the embedding vectors.
func (m *MockEmbedder) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimensions
}

// Model returns the name of the mock embedding model.
func (m *MockEmbedder) Model() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// Health reports the mock as healthy unless an embed error is injected.
func (m *MockEmbedder) Health(ctx context.Context) types.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.embedError != nil {
		return types.Unhealthy("mock embedder configured to fail")
	}
	return types.Healthy("mock embedder")
}

// Calls returns the ordered list of recorded method names.
func (m *MockEmbedder) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// SetEmbedError configures Embed() to return an error.
func (m *MockEmbedder) SetEmbedError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedError = err
}

// SetBatchError configures EmbedBatch() to return an error.
func (m *MockEmbedder) SetBatchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchError = err
}

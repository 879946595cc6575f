package rerank

import (
	"context"

	"github.com/uspq/neko-ai/internal/types"
)

// NoopReranker preserves the input ordering. It is the default when no
// rerank provider is configured.
type NoopReranker struct{}

// NewNoopReranker creates a reranker that keeps the caller's ordering.
func NewNoopReranker() *NoopReranker {
	return &NoopReranker{}
}

// Rerank returns the first topN documents in their original order with
// descending placeholder scores.
func (r *NoopReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]Ranked, error) {
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}
	ranked := make([]Ranked, topN)
	for i := 0; i < topN; i++ {
		ranked[i] = Ranked{Index: i, Score: 1 - float64(i)/float64(len(documents)+1)}
	}
	return ranked, nil
}

// Model returns the noop model name.
func (r *NoopReranker) Model() string {
	return "noop"
}

// Health reports the noop reranker as always healthy.
func (r *NoopReranker) Health(ctx context.Context) types.HealthStatus {
	return types.Healthy("noop reranker")
}

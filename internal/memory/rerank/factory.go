package rerank

import (
	"fmt"

	"github.com/uspq/neko-ai/internal/types"
)

// CreateReranker creates a reranker based on the provided configuration.
//
// Supported providers:
//   - "http": remote /rerank API (Cohere, Jina, SiliconFlow compatible)
//   - "noop": keep the caller's ordering (default)
//   - "mock": deterministic term-overlap scoring for tests
func CreateReranker(config RerankConfig) (Reranker, error) {
	switch config.Provider {
	case "http":
		return NewHTTPReranker(config)
	case "", "noop":
		return NewNoopReranker(), nil
	case "mock":
		return NewMockReranker(), nil
	default:
		return nil, types.NewError(ErrCodeInvalidConfig,
			fmt.Sprintf("unknown rerank provider '%s' - must be 'http', 'noop', or 'mock'",
				config.Provider))
	}
}

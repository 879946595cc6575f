package embedder

import (
	"fmt"

	"github.com/uspq/neko-ai/internal/types"
)

// CreateEmbedder creates an embedder based on the provided configuration.
//
// Supported providers:
//   - "openai": any OpenAI-compatible embeddings API (requires API key)
//   - "mock": deterministic hash-based embeddings for tests and offline use
func CreateEmbedder(config EmbedderConfig) (Embedder, error) {
	switch config.Provider {
	case "openai":
		return NewOpenAIEmbedder(config)
	case "mock":
		return NewMockEmbedder(config.Dimensions), nil
	default:
		return nil, types.NewError(ErrCodeInvalidConfig,
			fmt.Sprintf("unknown embedder provider '%s' - must be 'openai' or 'mock'",
				config.Provider))
	}
}

package rerank

import (
	"context"

	"github.com/uspq/neko-ai/internal/types"
)

// Ranked pairs a document index from the input slice with its relevance
// score. Higher scores mean more relevant to the query.
type Ranked struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Reranker reorders candidate documents by relevance to a query. Rerank
// failures are advisory: callers fall back to the pre-rerank ordering.
type Reranker interface {
	// Rerank scores documents against the query and returns up to topN
	// results, best first.
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Ranked, error)

	// Model returns the name of the rerank model being used.
	Model() string

	// Health returns the health status of the reranker.
	Health(ctx context.Context) types.HealthStatus
}

// RerankConfig holds configuration for rerank providers.
type RerankConfig struct {
	// Provider specifies which reranker implementation to use.
	// Options: "http", "noop", "mock"
	Provider string `yaml:"provider" json:"provider"`

	// Model is the rerank model, e.g. "BAAI/bge-reranker-v2-m3".
	Model string `yaml:"model" json:"model"`

	// APIKey authenticates against the rerank API.
	APIKey string `yaml:"api_key" json:"api_key"`

	// BaseURL is the base URL of a /rerank-style API.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// TopN is the default number of results to keep after reranking.
	TopN int `yaml:"top_n" json:"top_n"`

	// Timeout is the request timeout in seconds.
	Timeout int `yaml:"timeout" json:"timeout"`
}

// Validate checks if the RerankConfig is valid.
func (c *RerankConfig) Validate() error {
	if c.Provider == "" {
		return types.NewError(ErrCodeInvalidConfig, "rerank provider cannot be empty")
	}
	if c.Provider == "http" {
		if c.BaseURL == "" {
			return types.NewError(ErrCodeInvalidConfig, "http reranker requires base_url")
		}
		if c.Model == "" {
			return types.NewError(ErrCodeInvalidConfig, "http reranker requires model")
		}
	}
	if c.TopN < 0 {
		return types.NewError(ErrCodeInvalidConfig, "top_n must be non-negative")
	}
	if c.Timeout < 0 {
		return types.NewError(ErrCodeInvalidConfig, "timeout must be non-negative")
	}
	return nil
}

// DefaultRerankConfig returns the default rerank configuration. Reranking is
// disabled (noop) unless explicitly configured.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		Provider: "noop",
		Model:    "BAAI/bge-reranker-v2-m3",
		TopN:     5,
		Timeout:  30,
	}
}

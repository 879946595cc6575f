package embedder

import (
	"context"

	"github.com/uspq/neko-ai/internal/types"
)

// Embedder generates embedding vectors from text content.
// Implementations must be thread-safe for concurrent access.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimensionality of embedding vectors.
	Dimensions() int

	// Model returns the name of the embedding model being used.
	Model() string

	// Health returns the health status of the embedder.
	Health(ctx context.Context) types.HealthStatus
}

// EmbedderConfig holds configuration for embedding providers.
type EmbedderConfig struct {
	// Provider specifies which embedder implementation to use.
	// Options: "openai", "mock"
	Provider string `yaml:"provider" json:"provider"`

	// Model is the specific embedding model to use, e.g.
	// "text-embedding-3-small" (1536 dims) for OpenAI.
	Model string `yaml:"model" json:"model"`

	// APIKey is the API key for the embedding provider. Can also be
	// provided via environment variable (e.g. OPENAI_API_KEY).
	APIKey string `yaml:"api_key" json:"api_key"`

	// BaseURL is the base URL for an OpenAI-compatible embedding API.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Dimensions is the expected vector dimensionality. The write pipeline
	// rejects vectors of any other length.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// Timeout is the request timeout in seconds.
	Timeout int `yaml:"timeout" json:"timeout"`
}

// Validate checks if the EmbedderConfig is valid.
func (c *EmbedderConfig) Validate() error {
	if c.Provider == "" {
		return types.NewError(ErrCodeInvalidConfig, "embedder provider cannot be empty")
	}
	if c.Provider == "openai" {
		if c.APIKey == "" {
			return types.NewError(ErrCodeInvalidConfig,
				"openai embedder requires api_key (or OPENAI_API_KEY environment variable)")
		}
		if c.Model == "" {
			return types.NewError(ErrCodeInvalidConfig,
				"openai embedder requires model (e.g. 'text-embedding-3-small')")
		}
	}
	if c.Dimensions <= 0 {
		return types.NewError(ErrCodeInvalidConfig, "dimensions must be positive")
	}
	if c.MaxRetries < 0 {
		return types.NewError(ErrCodeInvalidConfig, "max_retries must be non-negative")
	}
	if c.Timeout < 0 {
		return types.NewError(ErrCodeInvalidConfig, "timeout must be non-negative")
	}
	return nil
}

// DefaultEmbedderConfig returns a default configuration for the OpenAI embedder.
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		Provider:   "openai",
		Model:      "text-embedding-3-small",
		BaseURL:    "https://api.openai.com/v1",
		Dimensions: 1536,
		MaxRetries: 3,
		Timeout:    30,
	}
}

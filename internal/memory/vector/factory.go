package vector

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/uspq/neko-ai/internal/types"
)

// StoreConfig holds configuration for creating a vector store.
type StoreConfig struct {
	Backend     string // "embedded" or "sqlite"
	StoragePath string // Path for sqlite backend
	Dimensions  int    // Embedding dimensions
}

// NewVectorStore creates a vector store based on the configuration.
// Supported backends:
//   - "embedded": chromem-go in-memory store (non-persistent, default)
//   - "sqlite": SQLite-backed store (persistent, suitable for production)
func NewVectorStore(cfg StoreConfig) (VectorStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, types.NewError(ErrCodeInvalidConfig,
			fmt.Sprintf("dimensions must be positive, got %d", cfg.Dimensions))
	}

	switch cfg.Backend {
	case "embedded", "":
		return NewChromemStore(cfg.Dimensions)

	case "sqlite":
		if cfg.StoragePath == "" {
			return nil, types.NewError(ErrCodeInvalidConfig,
				"storage_path is required for sqlite backend")
		}

		dir := filepath.Dir(cfg.StoragePath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, types.WrapError(ErrCodeVectorStoreFailed,
				"failed to create storage directory", err)
		}

		store, err := NewSqliteStore(SqliteConfig{
			DBPath: cfg.StoragePath,
			Dims:   cfg.Dimensions,
		})
		if err != nil {
			return nil, types.WrapError(ErrCodeVectorStoreFailed,
				"failed to create sqlite vector store", err)
		}
		return store, nil

	default:
		return nil, types.NewError(ErrCodeInvalidConfig,
			fmt.Sprintf("unknown backend '%s', must be one of: embedded, sqlite", cfg.Backend))
	}
}

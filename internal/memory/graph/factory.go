package graph

import (
	"context"
	"fmt"

	"github.com/uspq/neko-ai/internal/types"
)

// StoreConfig selects and configures a graph store backend.
type StoreConfig struct {
	// Backend selects the implementation: "embedded" (default) or "neo4j".
	Backend string

	// Neo4j holds connection settings when Backend is "neo4j".
	Neo4j Neo4jConfig
}

// NewGraphStore creates a graph store for the configured backend. The neo4j
// backend is connected before being returned.
func NewGraphStore(ctx context.Context, config StoreConfig) (GraphStore, error) {
	switch config.Backend {
	case "", "embedded":
		return NewEmbeddedStore(), nil
	case "neo4j":
		store, err := NewNeo4jStore(config.Neo4j)
		if err != nil {
			return nil, err
		}
		if err := store.Connect(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, types.NewError(ErrCodeGraphInvalidConf,
			fmt.Sprintf("unknown graph backend: %s", config.Backend))
	}
}

package graph

import "github.com/uspq/neko-ai/internal/types"

// Error codes for graph store operations.
const (
	ErrCodeGraphUnavailable  types.ErrorCode = "GRAPH_UNAVAILABLE"
	ErrCodeGraphWriteFailed  types.ErrorCode = "GRAPH_WRITE_FAILED"
	ErrCodeGraphQueryFailed  types.ErrorCode = "GRAPH_QUERY_FAILED"
	ErrCodeGraphDeleteFailed types.ErrorCode = "GRAPH_DELETE_FAILED"
	ErrCodeGraphNodeNotFound types.ErrorCode = "GRAPH_NODE_NOT_FOUND"
	ErrCodeGraphInvalidNode  types.ErrorCode = "GRAPH_INVALID_NODE"
	ErrCodeGraphInvalidEdge  types.ErrorCode = "GRAPH_INVALID_EDGE"
	ErrCodeGraphInvalidQuery types.ErrorCode = "GRAPH_INVALID_QUERY"
	ErrCodeGraphInvalidConf  types.ErrorCode = "GRAPH_INVALID_CONFIG"
)

package memory

import "github.com/uspq/neko-ai/internal/types"

// Error codes for the write pipeline, fusion engine, and lifecycle manager.
const (
	ErrCodeInvalidTurn      types.ErrorCode = "MEMORY_INVALID_TURN"
	ErrCodeInvalidQuery     types.ErrorCode = "MEMORY_INVALID_QUERY"
	ErrCodeEmbeddingFailed  types.ErrorCode = "MEMORY_EMBEDDING_FAILED"
	ErrCodeWriteFailed      types.ErrorCode = "MEMORY_WRITE_FAILED"
	ErrCodeRetrievalFailed  types.ErrorCode = "MEMORY_RETRIEVAL_FAILED"
	ErrCodeAllStoresFailed  types.ErrorCode = "MEMORY_ALL_STORES_FAILED"
	ErrCodeLifecycleFailed  types.ErrorCode = "MEMORY_LIFECYCLE_FAILED"
	ErrCodeServiceClosed    types.ErrorCode = "MEMORY_SERVICE_CLOSED"
	ErrCodeStatisticsFailed types.ErrorCode = "MEMORY_STATISTICS_FAILED"
)

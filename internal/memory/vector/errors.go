package vector

import "github.com/uspq/neko-ai/internal/types"

// Vector store error codes. Dimension mismatches are data errors fatal to
// the single affected item, never to the adapter.
const (
	ErrCodeVectorStoreUnavailable types.ErrorCode = "VECTOR_STORE_UNAVAILABLE"
	ErrCodeVectorNotFound         types.ErrorCode = "VECTOR_NOT_FOUND"
	ErrCodeVectorStoreFailed      types.ErrorCode = "VECTOR_STORE_FAILED"
	ErrCodeVectorSearchFailed     types.ErrorCode = "VECTOR_SEARCH_FAILED"
	ErrCodeDimensionMismatch      types.ErrorCode = "VECTOR_DIMENSION_MISMATCH"
	ErrCodeInvalidConfig          types.ErrorCode = "INVALID_VECTOR_CONFIG"
)

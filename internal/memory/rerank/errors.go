package rerank

import "github.com/uspq/neko-ai/internal/types"

// Reranker error codes
const (
	ErrCodeRerankUnavailable types.ErrorCode = "RERANK_UNAVAILABLE"
	ErrCodeRerankFailed      types.ErrorCode = "RERANK_FAILED"
	ErrCodeInvalidConfig     types.ErrorCode = "INVALID_RERANK_CONFIG"
)

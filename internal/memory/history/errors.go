package history

import "github.com/uspq/neko-ai/internal/types"

// History log error codes
const (
	ErrCodeHistoryUnavailable   types.ErrorCode = "HISTORY_LOG_UNAVAILABLE"
	ErrCodeHistoryAppendFailed  types.ErrorCode = "HISTORY_APPEND_FAILED"
	ErrCodeHistoryQueryFailed   types.ErrorCode = "HISTORY_QUERY_FAILED"
	ErrCodeHistoryDeleteFailed  types.ErrorCode = "HISTORY_DELETE_FAILED"
	ErrCodeHistoryInvalidEntry  types.ErrorCode = "HISTORY_INVALID_ENTRY"
	ErrCodeHistoryInvalidConfig types.ErrorCode = "HISTORY_INVALID_CONFIG"
)

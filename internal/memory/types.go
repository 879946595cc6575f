package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/uspq/neko-ai/internal/types"
)

// Turn is one completed conversation exchange handed to the write pipeline.
type Turn struct {
	ConversationID types.ID  `json:"conversation_id"`
	UserText       string    `json:"user_text"`
	AgentText      string    `json:"agent_text"`
	Thinking       string    `json:"thinking,omitempty"`
	Topic          string    `json:"topic,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate ensures the Turn has valid fields.
func (t *Turn) Validate() error {
	if t.ConversationID.IsZero() {
		return types.NewError(ErrCodeInvalidTurn, "turn conversation id cannot be empty")
	}
	if strings.TrimSpace(t.UserText) == "" && strings.TrimSpace(t.AgentText) == "" {
		return types.NewError(ErrCodeInvalidTurn, "turn must carry user or agent text")
	}
	return nil
}

// FullText renders the turn as the single text that gets embedded and stored
// as the memory's content.
func (t *Turn) FullText() string {
	return fmt.Sprintf("User: %s\nAssistant: %s", t.UserText, t.AgentText)
}

// Provenance tags name which store contributed a context entry.
const (
	SourceVector  = "vector"
	SourceGraph   = "graph"
	SourceHistory = "history"
)

// ContextEntry is one fused retrieval result: a memory with its final score
// and the union of the stores that contributed it.
type ContextEntry struct {
	MemoryID       types.ID  `json:"memory_id"`
	ConversationID types.ID  `json:"conversation_id"`
	Content        string    `json:"content"`
	Topic          string    `json:"topic,omitempty"`
	Score          float64   `json:"score"`
	Sources        []string  `json:"sources"`
	Timestamp      time.Time `json:"timestamp"`
	Tokens         int       `json:"tokens"`
}

// HasSource reports whether the entry was contributed by the named store.
func (e *ContextEntry) HasSource(source string) bool {
	for _, s := range e.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// FusedContext is the ordered, deduplicated, token-bounded result of a
// retrieval. Degraded is set when one or two stores failed and the context
// was assembled from the remainder.
type FusedContext struct {
	ConversationID types.ID       `json:"conversation_id"`
	Entries        []ContextEntry `json:"entries"`
	TotalTokens    int            `json:"total_tokens"`
	Degraded       bool           `json:"degraded"`
	// FailedSources lists the stores that errored or timed out.
	FailedSources []string `json:"failed_sources,omitempty"`
}

// WriteStatus classifies the outcome of a persist operation.
type WriteStatus string

const (
	// WriteStatusComplete means every durability-critical step succeeded.
	WriteStatusComplete WriteStatus = "complete"
	// WriteStatusPartial means at least one store failed after retries; the
	// receipt names the failures for later reconciliation.
	WriteStatusPartial WriteStatus = "partial"
	// WriteStatusSkipped means memory is disabled for the conversation and
	// only the history log was written.
	WriteStatusSkipped WriteStatus = "skipped"
)

// StepOutcome records one store write inside a TurnReceipt.
type StepOutcome struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// TurnReceipt is the structured result of persisting one turn. A partial
// receipt means some stores hold the turn and others do not; the caller or a
// repair job reconciles using the per-store detail.
type TurnReceipt struct {
	MemoryID       types.ID    `json:"memory_id"`
	ConversationID types.ID    `json:"conversation_id"`
	Status         WriteStatus `json:"status"`
	History        StepOutcome `json:"history"`
	Vector         StepOutcome `json:"vector"`
	Graph          StepOutcome `json:"graph"`
	// EdgesCreated and CrossEdgesCreated count the relationship-building
	// step, which is best-effort and never fails the turn.
	EdgesCreated      int    `json:"edges_created"`
	CrossEdgesCreated int    `json:"cross_edges_created"`
	EdgeError         string `json:"edge_error,omitempty"`
}

// Complete reports whether all durability-critical steps succeeded.
func (r *TurnReceipt) Complete() bool {
	return r.Status == WriteStatusComplete
}

// StoreOutcome records one store's result inside a cascade delete report.
type StoreOutcome struct {
	Removed int    `json:"removed"`
	Error   string `json:"error,omitempty"`
}

// DeleteReport aggregates per-store outcomes of a conversation cascade
// delete. Individual store failures are reported, not short-circuited.
type DeleteReport struct {
	ConversationID types.ID     `json:"conversation_id"`
	Vector         StoreOutcome `json:"vector"`
	Graph          StoreOutcome `json:"graph"`
	History        StoreOutcome `json:"history"`
	// ConversationDeleted reports whether the conversation record itself
	// was removed.
	ConversationDeleted bool   `json:"conversation_deleted"`
	ConversationError   string `json:"conversation_error,omitempty"`
}

// Clean reports whether every store completed its part of the cascade.
func (r *DeleteReport) Clean() bool {
	return r.Vector.Error == "" && r.Graph.Error == "" && r.History.Error == "" &&
		r.ConversationDeleted
}

// PurgeReport summarizes one decay pass.
type PurgeReport struct {
	Candidates int `json:"candidates"`
	Removed    int `json:"removed"`
	// Protected counts candidates spared because their conversation has
	// forgetting disabled.
	Protected int      `json:"protected"`
	Errors    []string `json:"errors,omitempty"`
}

// Statistics is a cross-store snapshot used by operators to spot drift
// between the vector index and the graph.
type Statistics struct {
	Conversations int  `json:"conversations"`
	VectorCount   int  `json:"vector_count"`
	GraphNodes    int  `json:"graph_nodes"`
	GraphEdges    int  `json:"graph_edges"`
	HistoryCount  int  `json:"history_count"`
	Consistent    bool `json:"consistent"`
}

// SearchResult is one keyword-search hit.
type SearchResult struct {
	MemoryID       types.ID  `json:"memory_id"`
	ConversationID types.ID  `json:"conversation_id"`
	Content        string    `json:"content"`
	Topic          string    `json:"topic,omitempty"`
	Score          float64   `json:"score"`
	Timestamp      time.Time `json:"timestamp"`
}

package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/uspq/neko-ai/internal/types"
)

// Node is one memory node in the relationship graph. Text previews,
// conversation id, and timestamp are stored on the node so traversal results
// never need a second round-trip to resolve them.
type Node struct {
	MemoryID       types.ID  `json:"memory_id"`
	ConversationID types.ID  `json:"conversation_id"`
	Topic          string    `json:"topic,omitempty"`
	UserPreview    string    `json:"user_preview"`
	AgentPreview   string    `json:"agent_preview"`
	Timestamp      time.Time `json:"timestamp"`
	UsageCount     int       `json:"usage_count"`
}

// Validate ensures the Node has valid fields.
func (n *Node) Validate() error {
	if n.MemoryID.IsZero() {
		return types.NewError(ErrCodeGraphInvalidNode, "node memory id cannot be empty")
	}
	if n.ConversationID.IsZero() {
		return types.NewError(ErrCodeGraphInvalidNode, "node conversation id cannot be empty")
	}
	if n.Timestamp.IsZero() {
		return types.NewError(ErrCodeGraphInvalidNode, "node timestamp cannot be zero")
	}
	return nil
}

// Edge is a similarity relationship between two memory nodes. Edges are
// created once by the write pipeline and never updated.
type Edge struct {
	SourceID          types.ID  `json:"source_id"`
	TargetID          types.ID  `json:"target_id"`
	Weight            float64   `json:"weight"` // similarity in [0,1]
	CrossConversation bool      `json:"cross_conversation"`
	CreatedAt         time.Time `json:"created_at"`
}

// Validate ensures the Edge has valid fields.
func (e *Edge) Validate() error {
	if e.SourceID.IsZero() || e.TargetID.IsZero() {
		return types.NewError(ErrCodeGraphInvalidEdge, "edge endpoints cannot be empty")
	}
	if e.SourceID == e.TargetID {
		return types.NewError(ErrCodeGraphInvalidEdge, "edge cannot connect a node to itself")
	}
	if e.Weight < 0 || e.Weight > 1 {
		return types.NewError(ErrCodeGraphInvalidEdge,
			fmt.Sprintf("edge weight must be in [0,1], got %f", e.Weight))
	}
	return nil
}

// Related is a traversal result: a reachable node with its shortest path
// length and the strongest path's weight product.
type Related struct {
	Node       Node    `json:"node"`
	PathLen    int     `json:"path_len"`
	PathWeight float64 `json:"path_weight"`
}

// TraversalOptions bounds a RelatedTo traversal.
type TraversalOptions struct {
	// Depth is the maximum number of hops; depth=1 returns direct
	// neighbors only.
	Depth int

	// ConversationID scopes the traversal; zero means ALL conversations.
	// When scoped, the traversal never crosses an edge whose both endpoints
	// are outside the conversation.
	ConversationID types.ID

	// MinWeight filters out edges below this weight.
	MinWeight float64

	// IncludeCross allows following cross-conversation edges whose weight
	// is at least CrossThreshold. Ignored when ConversationID is zero.
	IncludeCross   bool
	CrossThreshold float64
}

// Validate ensures the TraversalOptions are usable.
func (o *TraversalOptions) Validate() error {
	if o.Depth <= 0 {
		return types.NewError(ErrCodeGraphInvalidQuery,
			fmt.Sprintf("traversal depth must be positive, got %d", o.Depth))
	}
	if o.MinWeight < 0 || o.MinWeight > 1 {
		return types.NewError(ErrCodeGraphInvalidQuery,
			fmt.Sprintf("traversal min weight must be in [0,1], got %f", o.MinWeight))
	}
	return nil
}

// Stats reports graph-wide counts for the cross-store consistency check.
type Stats struct {
	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`
}

// GraphStore provides node/edge storage with depth-limited, conversation
// scoped traversal. Implementations must be thread-safe.
type GraphStore interface {
	// CreateNode stores a memory node. Creating an existing node is an
	// upsert, so write retries are safe.
	CreateNode(ctx context.Context, node Node) error

	// CreateEdge connects two existing nodes. Fails with a NodeNotFound
	// error if either endpoint is missing; the source is checked before the
	// target so the failure mode is deterministic.
	CreateEdge(ctx context.Context, edge Edge) error

	// RelatedTo traverses breadth-first from a memory up to opts.Depth hops
	// and returns reachable nodes. The origin node is never returned.
	RelatedTo(ctx context.Context, memoryID types.ID, opts TraversalOptions) ([]Related, error)

	// Node retrieves a single node by memory id.
	Node(ctx context.Context, memoryID types.ID) (*Node, error)

	// Recent returns the most recent nodes, optionally scoped to one
	// conversation (zero ID means ALL).
	Recent(ctx context.Context, conversationID types.ID, limit int) ([]Node, error)

	// SearchByKeyword returns nodes whose previews or topic contain the
	// keyword, newest first, optionally scoped to one conversation.
	SearchByKeyword(ctx context.Context, keyword string, limit int, conversationID types.ID) ([]Node, error)

	// TouchUsage increments the usage counter on the given nodes.
	// Missing ids are ignored.
	TouchUsage(ctx context.Context, memoryIDs []types.ID) error

	// ExpiredCandidates returns ids of nodes older than cutoff whose usage
	// count is below usageFloor and which have no incident edge at or above
	// minEdgeWeight. These are the decay pass's removal candidates.
	ExpiredCandidates(ctx context.Context, cutoff time.Time, minEdgeWeight float64, usageFloor int) ([]types.ID, error)

	// DeleteNode removes a node and cascades to all touching edges.
	DeleteNode(ctx context.Context, memoryID types.ID) error

	// DeleteConversation removes every node belonging to the conversation
	// (cascading edges) and returns how many nodes were removed.
	DeleteConversation(ctx context.Context, conversationID types.ID) (int, error)

	// Stats returns graph-wide node and edge counts.
	Stats(ctx context.Context) (Stats, error)

	// Health returns the current health status of the graph store.
	Health(ctx context.Context) types.HealthStatus

	// Close releases all resources held by the graph store.
	Close(ctx context.Context) error
}

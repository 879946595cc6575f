package graph

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uspq/neko-ai/internal/types"
)

var testBase = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func testNode(convID types.ID, n int) Node {
	return Node{
		MemoryID:       types.ID(fmt.Sprintf("mem-%s-%d", convID, n)),
		ConversationID: convID,
		Topic:          "topic",
		UserPreview:    fmt.Sprintf("user message %d", n),
		AgentPreview:   fmt.Sprintf("agent reply %d", n),
		Timestamp:      testBase.Add(time.Duration(n) * time.Minute),
	}
}

func mustNodes(t *testing.T, store *EmbeddedStore, convID types.ID, count int) []Node {
	t.Helper()
	nodes := make([]Node, count)
	for i := range nodes {
		nodes[i] = testNode(convID, i)
		require.NoError(t, store.CreateNode(context.Background(), nodes[i]))
	}
	return nodes
}

func mustEdge(t *testing.T, store *EmbeddedStore, source, target Node, weight float64, cross bool) {
	t.Helper()
	require.NoError(t, store.CreateEdge(context.Background(), Edge{
		SourceID:          source.MemoryID,
		TargetID:          target.MemoryID,
		Weight:            weight,
		CrossConversation: cross,
	}))
}

func TestEmbeddedStore_CreateNodeUpsert(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	convID := types.NewID()

	node := testNode(convID, 0)
	require.NoError(t, store.CreateNode(ctx, node))
	require.NoError(t, store.TouchUsage(ctx, []types.ID{node.MemoryID}))

	// Re-creating the same node keeps its usage counter.
	node.UserPreview = "rewritten"
	require.NoError(t, store.CreateNode(ctx, node))

	got, err := store.Node(ctx, node.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", got.UserPreview)
	assert.Equal(t, 1, got.UsageCount)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NodeCount)
}

func TestEmbeddedStore_CreateNodeValidation(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()

	err := store.CreateNode(ctx, Node{ConversationID: types.NewID(), Timestamp: time.Now()})
	assert.True(t, types.HasCode(err, ErrCodeGraphInvalidNode))

	err = store.CreateNode(ctx, Node{MemoryID: types.NewID(), Timestamp: time.Now()})
	assert.True(t, types.HasCode(err, ErrCodeGraphInvalidNode))

	err = store.CreateNode(ctx, Node{MemoryID: types.NewID(), ConversationID: types.NewID()})
	assert.True(t, types.HasCode(err, ErrCodeGraphInvalidNode))
}

func TestEmbeddedStore_CreateEdgeChecksSourceFirst(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	nodes := mustNodes(t, store, types.NewID(), 1)

	// Both endpoints missing: the source is reported.
	err := store.CreateEdge(ctx, Edge{SourceID: "ghost-src", TargetID: "ghost-dst", Weight: 0.5})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, ErrCodeGraphNodeNotFound))
	assert.Contains(t, err.Error(), "source")

	err = store.CreateEdge(ctx, Edge{SourceID: nodes[0].MemoryID, TargetID: "ghost-dst", Weight: 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target")
}

func TestEmbeddedStore_CreateEdgeValidation(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	nodes := mustNodes(t, store, types.NewID(), 2)

	err := store.CreateEdge(ctx, Edge{SourceID: nodes[0].MemoryID, TargetID: nodes[0].MemoryID, Weight: 0.5})
	assert.True(t, types.HasCode(err, ErrCodeGraphInvalidEdge))

	err = store.CreateEdge(ctx, Edge{SourceID: nodes[0].MemoryID, TargetID: nodes[1].MemoryID, Weight: 1.5})
	assert.True(t, types.HasCode(err, ErrCodeGraphInvalidEdge))

	err = store.CreateEdge(ctx, Edge{SourceID: nodes[0].MemoryID, TargetID: nodes[1].MemoryID, Weight: -0.1})
	assert.True(t, types.HasCode(err, ErrCodeGraphInvalidEdge))
}

func TestEmbeddedStore_RelatedToDepthAndOrigin(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	convID := types.NewID()

	// Chain: 0 -- 1 -- 2 -- 3
	nodes := mustNodes(t, store, convID, 4)
	for i := 0; i < 3; i++ {
		mustEdge(t, store, nodes[i], nodes[i+1], 0.9, false)
	}

	related, err := store.RelatedTo(ctx, nodes[0].MemoryID, TraversalOptions{Depth: 2})
	require.NoError(t, err)
	require.Len(t, related, 2)

	for _, r := range related {
		assert.NotEqual(t, nodes[0].MemoryID, r.Node.MemoryID, "origin must never be returned")
	}
	assert.Equal(t, nodes[1].MemoryID, related[0].Node.MemoryID)
	assert.Equal(t, 1, related[0].PathLen)
	assert.InDelta(t, 0.9, related[0].PathWeight, 1e-9)
	assert.Equal(t, nodes[2].MemoryID, related[1].Node.MemoryID)
	assert.Equal(t, 2, related[1].PathLen)
	assert.InDelta(t, 0.81, related[1].PathWeight, 1e-9)
}

func TestEmbeddedStore_RelatedToOrdering(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	convID := types.NewID()

	// Origin with two direct neighbors of differing weight: the stronger
	// path must sort first regardless of insertion order.
	nodes := mustNodes(t, store, convID, 3)
	mustEdge(t, store, nodes[0], nodes[1], 0.75, false)
	mustEdge(t, store, nodes[0], nodes[2], 0.9, false)

	related, err := store.RelatedTo(ctx, nodes[0].MemoryID, TraversalOptions{Depth: 1})
	require.NoError(t, err)
	require.Len(t, related, 2)
	assert.Equal(t, nodes[2].MemoryID, related[0].Node.MemoryID)
	assert.Equal(t, nodes[1].MemoryID, related[1].Node.MemoryID)
}

func TestEmbeddedStore_RelatedToMinWeight(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	convID := types.NewID()

	nodes := mustNodes(t, store, convID, 3)
	mustEdge(t, store, nodes[0], nodes[1], 0.9, false)
	mustEdge(t, store, nodes[0], nodes[2], 0.4, false)

	related, err := store.RelatedTo(ctx, nodes[0].MemoryID, TraversalOptions{Depth: 2, MinWeight: 0.7})
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, nodes[1].MemoryID, related[0].Node.MemoryID)
}

func TestEmbeddedStore_RelatedToConversationIsolation(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	convA := types.NewID()
	convB := types.NewID()

	aNodes := mustNodes(t, store, convA, 2)
	bNodes := mustNodes(t, store, convB, 2)
	mustEdge(t, store, aNodes[0], aNodes[1], 0.9, false)
	// Strong cross edge into B, but not flagged as cross-conversation.
	mustEdge(t, store, aNodes[1], bNodes[0], 0.95, false)
	mustEdge(t, store, bNodes[0], bNodes[1], 0.9, false)

	related, err := store.RelatedTo(ctx, aNodes[0].MemoryID, TraversalOptions{
		Depth:          3,
		ConversationID: convA,
		IncludeCross:   true,
		CrossThreshold: 0.8,
	})
	require.NoError(t, err)
	require.Len(t, related, 1, "unflagged edges must never leave the conversation")
	assert.Equal(t, aNodes[1].MemoryID, related[0].Node.MemoryID)
}

func TestEmbeddedStore_RelatedToCrossEdges(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	convA := types.NewID()
	convB := types.NewID()
	convC := types.NewID()

	aNodes := mustNodes(t, store, convA, 1)
	bNodes := mustNodes(t, store, convB, 2)
	cNodes := mustNodes(t, store, convC, 1)
	mustEdge(t, store, aNodes[0], bNodes[0], 0.85, true)
	// Below the cross threshold, must not be followed.
	mustEdge(t, store, aNodes[0], cNodes[0], 0.7, true)
	// Both endpoints outside conversation A, must not be followed even at
	// high weight.
	mustEdge(t, store, bNodes[0], bNodes[1], 0.99, false)

	opts := TraversalOptions{
		Depth:          3,
		ConversationID: convA,
		IncludeCross:   true,
		CrossThreshold: 0.8,
	}
	related, err := store.RelatedTo(ctx, aNodes[0].MemoryID, opts)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, bNodes[0].MemoryID, related[0].Node.MemoryID)

	// With cross traversal off, nothing outside A is reachable.
	opts.IncludeCross = false
	related, err = store.RelatedTo(ctx, aNodes[0].MemoryID, opts)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestEmbeddedStore_RelatedToMissingOrigin(t *testing.T) {
	store := NewEmbeddedStore()

	_, err := store.RelatedTo(context.Background(), types.NewID(), TraversalOptions{Depth: 1})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, ErrCodeGraphNodeNotFound))
}

func TestEmbeddedStore_RelatedToInvalidOptions(t *testing.T) {
	store := NewEmbeddedStore()
	nodes := mustNodes(t, store, types.NewID(), 1)

	_, err := store.RelatedTo(context.Background(), nodes[0].MemoryID, TraversalOptions{Depth: 0})
	assert.True(t, types.HasCode(err, ErrCodeGraphInvalidQuery))

	_, err = store.RelatedTo(context.Background(), nodes[0].MemoryID, TraversalOptions{Depth: 1, MinWeight: 2})
	assert.True(t, types.HasCode(err, ErrCodeGraphInvalidQuery))
}

func TestEmbeddedStore_Recent(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	convA := types.NewID()
	convB := types.NewID()

	aNodes := mustNodes(t, store, convA, 3)
	mustNodes(t, store, convB, 2)

	recent, err := store.Recent(ctx, convA, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, aNodes[2].MemoryID, recent[0].MemoryID)
	assert.Equal(t, aNodes[1].MemoryID, recent[1].MemoryID)

	// Zero conversation id spans everything.
	all, err := store.Recent(ctx, types.ID(""), 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestEmbeddedStore_SearchByKeyword(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	convID := types.NewID()

	require.NoError(t, store.CreateNode(ctx, Node{
		MemoryID:       types.NewID(),
		ConversationID: convID,
		Topic:          "travel",
		UserPreview:    "flights to Lisbon in May",
		AgentPreview:   "here are some options",
		Timestamp:      testBase,
	}))
	require.NoError(t, store.CreateNode(ctx, Node{
		MemoryID:       types.NewID(),
		ConversationID: convID,
		Topic:          "cooking",
		UserPreview:    "paella recipe",
		AgentPreview:   "start with the sofrito",
		Timestamp:      testBase.Add(time.Minute),
	}))

	hits, err := store.SearchByKeyword(ctx, "LISBON", 10, convID)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "travel", hits[0].Topic)

	// Topic text is searchable too.
	hits, err = store.SearchByKeyword(ctx, "cooking", 10, types.ID(""))
	require.NoError(t, err)
	require.Len(t, hits, 1)

	_, err = store.SearchByKeyword(ctx, "   ", 10, convID)
	assert.True(t, types.HasCode(err, ErrCodeGraphInvalidQuery))
}

func TestEmbeddedStore_ExpiredCandidates(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	convID := types.NewID()
	cutoff := testBase.Add(10 * time.Minute)

	old := testNode(convID, 0)           // before cutoff
	anchored := testNode(convID, 1)      // before cutoff, strong edge
	used := testNode(convID, 2)          // before cutoff, touched
	fresh := testNode(convID, 20)        // after cutoff
	for _, n := range []Node{old, anchored, used, fresh} {
		require.NoError(t, store.CreateNode(ctx, n))
	}
	mustEdge(t, store, anchored, used, 0.9, false)
	require.NoError(t, store.TouchUsage(ctx, []types.ID{used.MemoryID, used.MemoryID, used.MemoryID}))

	expired, err := store.ExpiredCandidates(ctx, cutoff, 0.5, 3)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.MemoryID, expired[0])
}

func TestEmbeddedStore_DeleteNodeCascades(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	convID := types.NewID()

	nodes := mustNodes(t, store, convID, 3)
	mustEdge(t, store, nodes[0], nodes[1], 0.9, false)
	mustEdge(t, store, nodes[1], nodes[2], 0.9, false)

	require.NoError(t, store.DeleteNode(ctx, nodes[1].MemoryID))
	require.NoError(t, store.DeleteNode(ctx, nodes[1].MemoryID)) // idempotent

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NodeCount)
	assert.Equal(t, 0, stats.EdgeCount)

	// Survivors are now disconnected.
	related, err := store.RelatedTo(ctx, nodes[0].MemoryID, TraversalOptions{Depth: 3})
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestEmbeddedStore_DeleteConversation(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	convA := types.NewID()
	convB := types.NewID()

	aNodes := mustNodes(t, store, convA, 3)
	bNodes := mustNodes(t, store, convB, 1)
	mustEdge(t, store, aNodes[0], aNodes[1], 0.9, false)
	mustEdge(t, store, aNodes[1], bNodes[0], 0.9, true)

	removed, err := store.DeleteConversation(ctx, convA)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NodeCount)
	assert.Equal(t, 0, stats.EdgeCount, "cross edges into deleted conversations must not survive")

	removed, err = store.DeleteConversation(ctx, convA)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestEmbeddedStore_Close(t *testing.T) {
	store := NewEmbeddedStore()
	ctx := context.Background()
	mustNodes(t, store, types.NewID(), 2)

	require.NoError(t, store.Close(ctx))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.NodeCount)
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uspq/neko-ai/internal/config"
	"github.com/uspq/neko-ai/internal/memory/embedder"
	"github.com/uspq/neko-ai/internal/memory/graph"
	"github.com/uspq/neko-ai/internal/memory/history"
	"github.com/uspq/neko-ai/internal/memory/rerank"
	"github.com/uspq/neko-ai/internal/memory/vector"
	"github.com/uspq/neko-ai/internal/types"
)

type fusionFixture struct {
	vectors  *vector.MockVectorStore
	graphs   *graph.MockGraphStore
	log      *history.MockLog
	embedder *embedder.MockEmbedder
	engine   *fusionEngine
}

func newFusionFixture(t *testing.T, reranker rerank.Reranker) *fusionFixture {
	t.Helper()
	f := &fusionFixture{
		vectors:  vector.NewMockVectorStore(),
		graphs:   graph.NewMockGraphStore(),
		log:      history.NewMockLog(),
		embedder: embedder.NewMockEmbedder(testDims),
	}
	cfg := config.NewDefaultConfig()
	f.engine = newFusionEngine(f.vectors, f.graphs, f.log, f.embedder, reranker, cfg.Retrieval, discardLogger())
	return f
}

// seedVector stores a memory whose embedding matches text exactly, so a query
// with the same text scores 1.0 against it.
func (f *fusionFixture) seedVector(t *testing.T, convID types.ID, text string, ts time.Time) types.ID {
	t.Helper()
	embedding, err := f.embedder.Embed(context.Background(), text)
	require.NoError(t, err)

	memoryID := types.NewMemoryID(convID, ts)
	require.NoError(t, f.vectors.Insert(context.Background(), vector.Record{
		ID:             memoryID,
		ConversationID: convID,
		Content:        text,
		Embedding:      embedding,
		Timestamp:      ts,
	}))
	return memoryID
}

func (f *fusionFixture) seedNode(t *testing.T, memoryID, convID types.ID, preview string, ts time.Time) {
	t.Helper()
	require.NoError(t, f.graphs.CreateNode(context.Background(), graph.Node{
		MemoryID:       memoryID,
		ConversationID: convID,
		UserPreview:    preview,
		AgentPreview:   "noted",
		Timestamp:      ts,
	}))
}

func (f *fusionFixture) seedHistory(t *testing.T, memoryID, convID types.ID, user string, ts time.Time) {
	t.Helper()
	require.NoError(t, f.log.Append(context.Background(), history.Entry{
		ConversationID: convID,
		MemoryID:       memoryID,
		UserText:       user,
		AgentText:      "reply to " + user,
		Timestamp:      ts,
	}))
}

var fusionBase = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func TestFusionRetrieve_MergesAllThreeSources(t *testing.T) {
	f := newFusionFixture(t, nil)
	ctx := context.Background()
	convID := types.NewID()
	query := "where should I stay in Kyoto"

	// One memory known to the vector index and the history log; a second
	// memory reachable only through a graph edge from the first.
	anchorID := f.seedVector(t, convID, query, fusionBase)
	f.seedNode(t, anchorID, convID, "kyoto hotels", fusionBase)
	f.seedHistory(t, anchorID, convID, "kyoto hotels", fusionBase)

	relatedID := types.NewMemoryID(convID, fusionBase.Add(-time.Hour))
	f.seedNode(t, relatedID, convID, "ryokan in Gion", fusionBase.Add(-time.Hour))
	require.NoError(t, f.graphs.CreateEdge(ctx, graph.Edge{
		SourceID: anchorID,
		TargetID: relatedID,
		Weight:   0.9,
	}))

	fused, err := f.engine.retrieve(ctx, convID, query, RetrieveOptions{})
	require.NoError(t, err)

	assert.False(t, fused.Degraded)
	assert.Empty(t, fused.FailedSources)
	require.Len(t, fused.Entries, 2)

	// The anchor dedups into one entry carrying both provenances and its
	// maximum score.
	anchor := fused.Entries[0]
	assert.Equal(t, anchorID, anchor.MemoryID)
	assert.True(t, anchor.HasSource(SourceVector))
	assert.True(t, anchor.HasSource(SourceHistory))
	assert.InDelta(t, 1.0, anchor.Score, 1e-9)

	related := fused.Entries[1]
	assert.Equal(t, relatedID, related.MemoryID)
	assert.Equal(t, []string{SourceGraph}, related.Sources)
	assert.InDelta(t, 0.9, related.Score, 1e-9)

	// Graph hits feed the usage counters for the decay pass.
	node, err := f.graphs.Node(ctx, relatedID)
	require.NoError(t, err)
	assert.Equal(t, 1, node.UsageCount)
}

func TestFusionRetrieve_ConversationIsolation(t *testing.T) {
	f := newFusionFixture(t, nil)
	ctx := context.Background()
	convA := types.NewID()
	convB := types.NewID()
	query := "the shared secret phrase"

	f.seedVector(t, convB, query, fusionBase)

	fused, err := f.engine.retrieve(ctx, convA, query, RetrieveOptions{})
	require.NoError(t, err)

	// A perfect similarity match in another conversation stays invisible
	// without the cross-conversation opt-in.
	assert.Empty(t, fused.Entries)
	assert.False(t, fused.Degraded)
}

func TestFusionRetrieve_CrossConversationOptIn(t *testing.T) {
	f := newFusionFixture(t, nil)
	ctx := context.Background()
	convA := types.NewID()
	convB := types.NewID()
	query := "preferred airline seats"

	otherID := f.seedVector(t, convB, query, fusionBase)

	fused, err := f.engine.retrieve(ctx, convA, query, RetrieveOptions{IncludeCross: true})
	require.NoError(t, err)

	require.Len(t, fused.Entries, 1)
	assert.Equal(t, otherID, fused.Entries[0].MemoryID)
	assert.Equal(t, convB, fused.Entries[0].ConversationID)
}

func TestFusionRetrieve_HistoryOnly(t *testing.T) {
	f := newFusionFixture(t, nil)
	ctx := context.Background()
	convID := types.NewID()

	for i := 0; i < 3; i++ {
		memoryID := types.NewMemoryID(convID, fusionBase.Add(time.Duration(i)*time.Minute))
		f.seedHistory(t, memoryID, convID, fmt.Sprintf("turn %d", i), fusionBase.Add(time.Duration(i)*time.Minute))
	}

	fused, err := f.engine.retrieve(ctx, convID, "anything at all", RetrieveOptions{})
	require.NoError(t, err)

	// Pure recency order: the newest turn scores highest.
	require.Len(t, fused.Entries, 3)
	assert.Contains(t, fused.Entries[0].Content, "turn 2")
	assert.InDelta(t, 1.0, fused.Entries[0].Score, 1e-9)
	assert.Greater(t, fused.Entries[0].Score, fused.Entries[1].Score)
	assert.Greater(t, fused.Entries[1].Score, fused.Entries[2].Score)
}

func TestFusionRetrieve_DegradedOnVectorFailure(t *testing.T) {
	f := newFusionFixture(t, nil)
	ctx := context.Background()
	convID := types.NewID()

	memoryID := types.NewMemoryID(convID, fusionBase)
	f.seedHistory(t, memoryID, convID, "still reachable", fusionBase)
	f.vectors.SetSearchError(types.NewError(vector.ErrCodeVectorSearchFailed, "index corrupt"))

	fused, err := f.engine.retrieve(ctx, convID, "still reachable", RetrieveOptions{})
	require.NoError(t, err)

	assert.True(t, fused.Degraded)
	assert.Equal(t, []string{SourceVector}, fused.FailedSources)
	require.Len(t, fused.Entries, 1)
	assert.Equal(t, memoryID, fused.Entries[0].MemoryID)
}

func TestFusionRetrieve_EmbedFailureDegradesBothSimilarityLanes(t *testing.T) {
	f := newFusionFixture(t, nil)
	ctx := context.Background()
	convID := types.NewID()

	memoryID := types.NewMemoryID(convID, fusionBase)
	f.seedHistory(t, memoryID, convID, "history survives", fusionBase)
	f.embedder.SetEmbedError(errors.New("model offline"))

	fused, err := f.engine.retrieve(ctx, convID, "history survives", RetrieveOptions{})
	require.NoError(t, err)

	assert.True(t, fused.Degraded)
	assert.Equal(t, []string{SourceGraph, SourceVector}, fused.FailedSources)
	require.Len(t, fused.Entries, 1)
}

func TestFusionRetrieve_AllSourcesFailed(t *testing.T) {
	f := newFusionFixture(t, nil)
	ctx := context.Background()

	f.embedder.SetEmbedError(errors.New("model offline"))
	f.log.SetWindowError(types.NewError(history.ErrCodeHistoryQueryFailed, "log unreadable"))

	_, err := f.engine.retrieve(ctx, types.NewID(), "anything", RetrieveOptions{})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, ErrCodeAllStoresFailed))
}

func TestFusionRetrieve_MaxMemories(t *testing.T) {
	f := newFusionFixture(t, nil)
	ctx := context.Background()
	convID := types.NewID()

	for i := 0; i < 6; i++ {
		ts := fusionBase.Add(time.Duration(i) * time.Minute)
		f.seedHistory(t, types.NewMemoryID(convID, ts), convID, fmt.Sprintf("turn %d", i), ts)
	}

	fused, err := f.engine.retrieve(ctx, convID, "anything", RetrieveOptions{MaxMemories: 2})
	require.NoError(t, err)

	require.Len(t, fused.Entries, 2)
	assert.Contains(t, fused.Entries[0].Content, "turn 5")
	assert.Contains(t, fused.Entries[1].Content, "turn 4")
}

func TestFusionRetrieve_TokenBudget(t *testing.T) {
	f := newFusionFixture(t, nil)
	ctx := context.Background()
	convID := types.NewID()

	newest := "the newest and highest scoring turn in the window"
	older := "an older turn that no longer fits the budget"
	f.seedHistory(t, types.NewMemoryID(convID, fusionBase.Add(time.Minute)), convID, newest, fusionBase.Add(time.Minute))
	f.seedHistory(t, types.NewMemoryID(convID, fusionBase), convID, older, fusionBase)

	newestTokens := EstimateStringTokens(fmt.Sprintf("User: %s\nAssistant: reply to %s", newest, newest))

	// Budget fits exactly one entry; the boundary never splits a memory.
	fused, err := f.engine.retrieve(ctx, convID, "anything", RetrieveOptions{MaxTokens: newestTokens})
	require.NoError(t, err)

	require.Len(t, fused.Entries, 1)
	assert.Contains(t, fused.Entries[0].Content, newest)
	assert.Equal(t, newestTokens, fused.TotalTokens)
	assert.Equal(t, newestTokens, fused.Entries[0].Tokens)
}

func TestFusionRetrieve_Validation(t *testing.T) {
	f := newFusionFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.retrieve(ctx, types.ID(""), "query", RetrieveOptions{})
	assert.True(t, types.HasCode(err, ErrCodeInvalidQuery))

	_, err = f.engine.retrieve(ctx, types.NewID(), "   ", RetrieveOptions{})
	assert.True(t, types.HasCode(err, ErrCodeInvalidQuery))
}

func TestFusionRetrieve_RerankReplacesScores(t *testing.T) {
	f := newFusionFixture(t, rerank.NewMockReranker())
	ctx := context.Background()
	convID := types.NewID()

	// Two history entries; the mock reranker scores by term overlap with the
	// query, which inverts the recency order.
	match := "tell me about volcanoes in Iceland"
	other := "unrelated smalltalk"
	f.seedHistory(t, types.NewMemoryID(convID, fusionBase), convID, match, fusionBase)
	f.seedHistory(t, types.NewMemoryID(convID, fusionBase.Add(time.Minute)), convID, other, fusionBase.Add(time.Minute))

	fused, err := f.engine.retrieve(ctx, convID, "volcanoes in Iceland", RetrieveOptions{})
	require.NoError(t, err)

	require.Len(t, fused.Entries, 2)
	assert.Contains(t, fused.Entries[0].Content, "volcanoes")
}

func TestFusionRetrieve_RerankFailureKeepsRawScores(t *testing.T) {
	reranker := rerank.NewMockReranker()
	reranker.SetRerankError(errors.New("reranker down"))
	f := newFusionFixture(t, reranker)
	ctx := context.Background()
	convID := types.NewID()

	f.seedHistory(t, types.NewMemoryID(convID, fusionBase), convID, "old turn", fusionBase)
	f.seedHistory(t, types.NewMemoryID(convID, fusionBase.Add(time.Minute)), convID, "new turn", fusionBase.Add(time.Minute))

	fused, err := f.engine.retrieve(ctx, convID, "anything", RetrieveOptions{})
	require.NoError(t, err)

	// Recency order stands when reranking fails.
	require.Len(t, fused.Entries, 2)
	assert.Contains(t, fused.Entries[0].Content, "new turn")
}

func TestCandidateSet_Merge(t *testing.T) {
	set := newCandidateSet()
	id := types.NewID()

	set.add(ContextEntry{MemoryID: id, Content: "short", Score: 0.4, Sources: []string{SourceGraph}})
	set.add(ContextEntry{MemoryID: id, Content: "a much longer rendition", Score: 0.9, Sources: []string{SourceVector}})
	set.add(ContextEntry{MemoryID: id, Content: "mid", Score: 0.6, Sources: []string{SourceVector, SourceHistory}})

	entries := set.list()
	require.Len(t, entries, 1)
	assert.Equal(t, 0.9, entries[0].Score)
	assert.Equal(t, "a much longer rendition", entries[0].Content)
	assert.ElementsMatch(t, []string{SourceGraph, SourceVector, SourceHistory}, entries[0].Sources)
}

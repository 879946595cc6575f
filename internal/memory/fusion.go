package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/uspq/neko-ai/internal/config"
	"github.com/uspq/neko-ai/internal/memory/embedder"
	"github.com/uspq/neko-ai/internal/memory/graph"
	"github.com/uspq/neko-ai/internal/memory/history"
	"github.com/uspq/neko-ai/internal/memory/rerank"
	"github.com/uspq/neko-ai/internal/memory/vector"
	"github.com/uspq/neko-ai/internal/types"
)

// maxGraphAnchors bounds how many vector hits seed the graph traversal.
const maxGraphAnchors = 3

// RetrieveOptions tunes one retrieval. Zero values fall back to the
// configured defaults.
type RetrieveOptions struct {
	// IncludeCross opts into cross-conversation retrieval. Memories from
	// other conversations are only reachable through cross-conversation
	// edges or explicit above-threshold similarity, never an unfiltered
	// search.
	IncludeCross bool

	// MaxMemories overrides the configured context entry cap.
	MaxMemories int

	// MaxTokens overrides the configured token budget.
	MaxTokens int

	// TopK overrides how many vector neighbors to fetch.
	TopK int
}

// fusionEngine assembles a ranked, deduplicated, token-bounded context from
// concurrent reads of the three stores. One failing store degrades the
// context; only all three failing fails the retrieval.
type fusionEngine struct {
	vectors  vector.VectorStore
	graphs   graph.GraphStore
	log      history.HistoryLog
	embedder embedder.Embedder
	reranker rerank.Reranker
	cfg      config.RetrievalConfig
	logger   *slog.Logger
}

func newFusionEngine(
	vectors vector.VectorStore,
	graphs graph.GraphStore,
	log history.HistoryLog,
	emb embedder.Embedder,
	reranker rerank.Reranker,
	cfg config.RetrievalConfig,
	logger *slog.Logger,
) *fusionEngine {
	return &fusionEngine{
		vectors:  vectors,
		graphs:   graphs,
		log:      log,
		embedder: emb,
		reranker: reranker,
		cfg:      cfg,
		logger:   logger,
	}
}

// candidateSet accumulates fan-out results keyed by memory id. A memory seen
// from multiple stores keeps its maximum score and the union of sources.
type candidateSet struct {
	mu      sync.Mutex
	entries map[types.ID]*ContextEntry
}

func newCandidateSet() *candidateSet {
	return &candidateSet{entries: make(map[types.ID]*ContextEntry)}
}

func (c *candidateSet) add(entry ContextEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.entries[entry.MemoryID]
	if !ok {
		c.entries[entry.MemoryID] = &entry
		return
	}
	if entry.Score > existing.Score {
		existing.Score = entry.Score
	}
	// Prefer the fullest content we have seen; graph previews are truncated.
	if len(entry.Content) > len(existing.Content) {
		existing.Content = entry.Content
	}
	if existing.Topic == "" {
		existing.Topic = entry.Topic
	}
	for _, source := range entry.Sources {
		if !existing.HasSource(source) {
			existing.Sources = append(existing.Sources, source)
		}
	}
}

func (c *candidateSet) list() []ContextEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]ContextEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, *entry)
	}
	return entries
}

// retrieve runs the fan-out, merge, rerank, and truncation steps.
func (e *fusionEngine) retrieve(ctx context.Context, conversationID types.ID, queryText string, opts RetrieveOptions) (*FusedContext, error) {
	if conversationID.IsZero() {
		return nil, types.NewError(ErrCodeInvalidQuery, "retrieval conversation id cannot be empty")
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, types.NewError(ErrCodeInvalidQuery, "retrieval query text cannot be empty")
	}

	maxMemories := opts.MaxMemories
	if maxMemories <= 0 {
		maxMemories = e.cfg.MaxMemories
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = e.cfg.MaxTokens
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	fanoutCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	candidates := newCandidateSet()
	var failMu sync.Mutex
	failed := map[string]error{}
	fail := func(source string, err error) {
		failMu.Lock()
		defer failMu.Unlock()
		failed[source] = err
	}

	// The graph lane anchors on the vector lane's hits, so those two run in
	// one goroutine; the history window runs alongside. Errors degrade the
	// context instead of cancelling the group.
	g, groupCtx := errgroup.WithContext(fanoutCtx)

	g.Go(func() error {
		anchors := e.vectorLane(groupCtx, conversationID, queryText, topK, opts.IncludeCross, candidates, fail)
		e.graphLane(groupCtx, conversationID, anchors, opts.IncludeCross, candidates, fail)
		return nil
	})

	g.Go(func() error {
		window, err := e.log.Window(groupCtx, conversationID, e.cfg.WindowSize)
		if err != nil {
			fail(SourceHistory, err)
			return nil
		}
		for rank, entry := range window {
			candidates.add(ContextEntry{
				MemoryID:       entry.MemoryID,
				ConversationID: entry.ConversationID,
				Content:        fmt.Sprintf("User: %s\nAssistant: %s", entry.UserText, entry.AgentText),
				Score:          recencyScore(rank, len(window)),
				Sources:        []string{SourceHistory},
				Timestamp:      entry.Timestamp,
			})
		}
		return nil
	})

	_ = g.Wait()

	entries := candidates.list()
	if len(failed) > 0 {
		for source, err := range failed {
			e.logger.Warn("retrieval source failed",
				"conversation_id", conversationID, "source", source, "error", err)
		}
	}
	if len(failed) >= 3 {
		return nil, types.NewError(ErrCodeAllStoresFailed,
			"all retrieval sources failed")
	}

	e.applyRerank(ctx, queryText, entries)

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if len(entries) > maxMemories {
		entries = entries[:maxMemories]
	}

	// Token budget: keep the longest prefix that fits; a memory's text is
	// never split across the boundary.
	total := 0
	kept := entries[:0]
	for i := range entries {
		entries[i].Tokens = EstimateStringTokens(entries[i].Content)
		if total+entries[i].Tokens > maxTokens {
			break
		}
		total += entries[i].Tokens
		kept = append(kept, entries[i])
	}

	fused := &FusedContext{
		ConversationID: conversationID,
		Entries:        kept,
		TotalTokens:    total,
		Degraded:       len(failed) > 0,
	}
	for source := range failed {
		fused.FailedSources = append(fused.FailedSources, source)
	}
	sort.Strings(fused.FailedSources)
	return fused, nil
}

// vectorLane searches the vector index and returns the same-conversation hit
// ids that seed the graph traversal.
func (e *fusionEngine) vectorLane(ctx context.Context, conversationID types.ID, queryText string, topK int, includeCross bool, candidates *candidateSet, fail func(string, error)) []types.ID {
	embedding, err := e.embedder.Embed(ctx, queryText)
	if err != nil {
		// Without a query vector neither similarity lane can run.
		fail(SourceVector, err)
		fail(SourceGraph, err)
		return nil
	}

	var anchors []types.ID

	query := vector.NewQuery(embedding, topK, conversationID).
		WithMinScore(e.cfg.MinSimilarity)
	results, err := e.vectors.Search(ctx, *query)
	if err != nil {
		fail(SourceVector, err)
	} else {
		for _, result := range results {
			candidates.add(ContextEntry{
				MemoryID:       result.Record.ID,
				ConversationID: result.Record.ConversationID,
				Content:        result.Record.Content,
				Score:          result.Score,
				Sources:        []string{SourceVector},
				Timestamp:      result.Record.Timestamp,
			})
			if len(anchors) < maxGraphAnchors {
				anchors = append(anchors, result.Record.ID)
			}
		}
	}

	if includeCross {
		crossQuery := vector.NewQuery(embedding, topK, types.ID("")).
			WithMinScore(e.cfg.CrossThreshold)
		crossResults, err := e.vectors.Search(ctx, *crossQuery)
		if err != nil {
			fail(SourceVector, err)
		} else {
			for _, result := range crossResults {
				if result.Record.ConversationID == conversationID {
					continue
				}
				candidates.add(ContextEntry{
					MemoryID:       result.Record.ID,
					ConversationID: result.Record.ConversationID,
					Content:        result.Record.Content,
					Score:          result.Score,
					Sources:        []string{SourceVector},
					Timestamp:      result.Record.Timestamp,
				})
			}
		}
	}

	return anchors
}

// graphLane traverses from the anchor memories. When the vector lane came
// back empty it falls back to the conversation's most recent memory.
func (e *fusionEngine) graphLane(ctx context.Context, conversationID types.ID, anchors []types.ID, includeCross bool, candidates *candidateSet, fail func(string, error)) {
	if len(anchors) == 0 {
		recent, err := e.graphs.Recent(ctx, conversationID, 1)
		if err != nil {
			fail(SourceGraph, err)
			return
		}
		for _, node := range recent {
			anchors = append(anchors, node.MemoryID)
		}
	}
	if len(anchors) == 0 {
		return
	}

	opts := graph.TraversalOptions{
		Depth:          e.cfg.GraphDepth,
		ConversationID: conversationID,
		MinWeight:      e.cfg.MinSimilarity,
		IncludeCross:   includeCross,
		CrossThreshold: e.cfg.CrossThreshold,
	}
	touched := make([]types.ID, 0, len(anchors))
	for _, anchor := range anchors {
		related, err := e.graphs.RelatedTo(ctx, anchor, opts)
		if err != nil {
			if types.HasCode(err, graph.ErrCodeGraphNodeNotFound) {
				continue
			}
			fail(SourceGraph, err)
			return
		}
		for _, rel := range related {
			candidates.add(ContextEntry{
				MemoryID:       rel.Node.MemoryID,
				ConversationID: rel.Node.ConversationID,
				Content:        fmt.Sprintf("User: %s\nAssistant: %s", rel.Node.UserPreview, rel.Node.AgentPreview),
				Topic:          rel.Node.Topic,
				Score:          rel.PathWeight,
				Sources:        []string{SourceGraph},
				Timestamp:      rel.Node.Timestamp,
			})
			touched = append(touched, rel.Node.MemoryID)
		}
	}

	// Usage counters feed the decay pass; failures here are harmless.
	if len(touched) > 0 {
		if err := e.graphs.TouchUsage(ctx, touched); err != nil {
			e.logger.Debug("usage touch failed", "error", err)
		}
	}
}

// applyRerank asks the reranker to rescore candidates against the query.
// Rerank failures leave the raw scores standing.
func (e *fusionEngine) applyRerank(ctx context.Context, queryText string, entries []ContextEntry) {
	if e.reranker == nil || len(entries) == 0 {
		return
	}

	documents := make([]string, len(entries))
	for i, entry := range entries {
		documents[i] = entry.Content
	}
	ranked, err := e.reranker.Rerank(ctx, queryText, documents, len(documents))
	if err != nil {
		e.logger.Warn("rerank failed, keeping raw scores", "error", err)
		return
	}
	for _, r := range ranked {
		entries[r.Index].Score = r.Score
	}
}

// recencyScore maps a window rank (0 = most recent) into (0,1], so recent
// turns compete with similarity scores on the same scale.
func recencyScore(rank, size int) float64 {
	if size <= 0 {
		return 0
	}
	return 1 - float64(rank)/float64(size)
}

package memory

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/uspq/neko-ai/internal/config"
	"github.com/uspq/neko-ai/internal/database"
	"github.com/uspq/neko-ai/internal/memory/embedder"
	"github.com/uspq/neko-ai/internal/memory/graph"
	"github.com/uspq/neko-ai/internal/memory/history"
	"github.com/uspq/neko-ai/internal/memory/vector"
	"github.com/uspq/neko-ai/internal/types"
)

const (
	writeRetryAttempts = 3
	writeRetryBase     = 100 * time.Millisecond
)

// writePipeline persists one turn across the three stores and builds its
// relationship edges. Store writes are retried independently; edge building
// is best-effort and never fails the turn.
type writePipeline struct {
	vectors  vector.VectorStore
	graphs   graph.GraphStore
	log      history.HistoryLog
	embedder embedder.Embedder
	cfg      config.RetrievalConfig
	logger   *slog.Logger
}

func newWritePipeline(
	vectors vector.VectorStore,
	graphs graph.GraphStore,
	log history.HistoryLog,
	emb embedder.Embedder,
	cfg config.RetrievalConfig,
	logger *slog.Logger,
) *writePipeline {
	return &writePipeline{
		vectors:  vectors,
		graphs:   graphs,
		log:      log,
		embedder: emb,
		cfg:      cfg,
		logger:   logger,
	}
}

// persist writes the turn to the history log, vector index, and graph, then
// builds similarity edges. The caller holds the per-conversation write lock.
func (p *writePipeline) persist(ctx context.Context, turn Turn, settings database.ConversationSettings) (*TurnReceipt, error) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	if err := turn.Validate(); err != nil {
		return nil, err
	}

	// The memory id is deterministic over (conversation, timestamp) so a
	// retried persist lands on the same id in every store.
	memoryID := types.NewMemoryID(turn.ConversationID, turn.Timestamp)
	receipt := &TurnReceipt{
		MemoryID:       memoryID,
		ConversationID: turn.ConversationID,
	}

	entry := history.Entry{
		ConversationID: turn.ConversationID,
		MemoryID:       memoryID,
		UserText:       turn.UserText,
		AgentText:      turn.AgentText,
		Timestamp:      turn.Timestamp,
	}

	if !settings.MemoryEnabled {
		// Memory is off for this conversation: the turn still exists in the
		// history log, nothing else.
		receipt.Status = WriteStatusSkipped
		receipt.History = outcome(retryWithBackoff(ctx, writeRetryAttempts, writeRetryBase, func() error {
			return p.log.Append(ctx, entry)
		}))
		if !receipt.History.OK {
			receipt.Status = WriteStatusPartial
		}
		return receipt, nil
	}

	embedding, err := p.embedder.Embed(ctx, turn.FullText())
	if err != nil {
		// No store has seen this turn yet, so failing outright is safe.
		return nil, types.WrapError(ErrCodeEmbeddingFailed,
			"failed to embed turn", err)
	}

	record := vector.Record{
		ID:             memoryID,
		ConversationID: turn.ConversationID,
		Content:        turn.FullText(),
		Embedding:      embedding,
		Timestamp:      turn.Timestamp,
	}
	node := graph.Node{
		MemoryID:       memoryID,
		ConversationID: turn.ConversationID,
		Topic:          topicFor(turn),
		UserPreview:    preview(turn.UserText),
		AgentPreview:   preview(turn.AgentText),
		Timestamp:      turn.Timestamp,
	}

	// The three writes have no ordering dependency; each retries on its own.
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		receipt.History = outcome(retryWithBackoff(ctx, writeRetryAttempts, writeRetryBase, func() error {
			return p.log.Append(ctx, entry)
		}))
	}()
	go func() {
		defer wg.Done()
		receipt.Vector = outcome(retryWithBackoff(ctx, writeRetryAttempts, writeRetryBase, func() error {
			return p.vectors.Insert(ctx, record)
		}))
	}()
	go func() {
		defer wg.Done()
		receipt.Graph = outcome(retryWithBackoff(ctx, writeRetryAttempts, writeRetryBase, func() error {
			return p.graphs.CreateNode(ctx, node)
		}))
	}()
	wg.Wait()

	if receipt.History.OK && receipt.Vector.OK && receipt.Graph.OK {
		receipt.Status = WriteStatusComplete
	} else {
		receipt.Status = WriteStatusPartial
		p.logger.Warn("turn persisted partially",
			"memory_id", memoryID,
			"conversation_id", turn.ConversationID,
			"history", receipt.History.Error,
			"vector", receipt.Vector.Error,
			"graph", receipt.Graph.Error)
	}

	// Edge building needs the vector index populated and the graph node
	// present.
	if receipt.Vector.OK && receipt.Graph.OK {
		p.buildEdges(ctx, memoryID, turn, embedding, settings, receipt)
	}

	return receipt, nil
}

// buildEdges connects the new memory to its nearest prior memories. Same
// conversation neighbors use the base similarity floor; cross-conversation
// neighbors must clear the higher cross threshold and are capped.
func (p *writePipeline) buildEdges(ctx context.Context, memoryID types.ID, turn Turn, embedding []float64, settings database.ConversationSettings, receipt *TurnReceipt) {
	sameQuery := vector.NewQuery(embedding, p.cfg.TopK+1, turn.ConversationID).
		WithMinScore(p.cfg.MinSimilarity)
	results, err := p.vectors.Search(ctx, *sameQuery)
	if err != nil {
		receipt.EdgeError = err.Error()
		p.logger.Warn("edge building skipped", "memory_id", memoryID, "error", err)
		return
	}

	for _, result := range results {
		if result.Record.ID == memoryID {
			continue
		}
		edge := graph.Edge{
			SourceID:  memoryID,
			TargetID:  result.Record.ID,
			Weight:    result.Score,
			CreatedAt: turn.Timestamp,
		}
		if err := p.graphs.CreateEdge(ctx, edge); err != nil {
			receipt.EdgeError = err.Error()
			p.logger.Warn("edge creation failed",
				"source", memoryID, "target", result.Record.ID, "error", err)
			continue
		}
		receipt.EdgesCreated++
	}

	if !settings.CrossConversation {
		return
	}

	crossQuery := vector.NewQuery(embedding, p.cfg.TopK+p.cfg.CrossEdgeCap+1, types.ID("")).
		WithMinScore(p.cfg.CrossThreshold)
	crossResults, err := p.vectors.Search(ctx, *crossQuery)
	if err != nil {
		receipt.EdgeError = err.Error()
		p.logger.Warn("cross edge building skipped", "memory_id", memoryID, "error", err)
		return
	}

	for _, result := range crossResults {
		if receipt.CrossEdgesCreated >= p.cfg.CrossEdgeCap {
			break
		}
		if result.Record.ID == memoryID || result.Record.ConversationID == turn.ConversationID {
			continue
		}
		edge := graph.Edge{
			SourceID:          memoryID,
			TargetID:          result.Record.ID,
			Weight:            result.Score,
			CrossConversation: true,
			CreatedAt:         turn.Timestamp,
		}
		if err := p.graphs.CreateEdge(ctx, edge); err != nil {
			receipt.EdgeError = err.Error()
			p.logger.Warn("cross edge creation failed",
				"source", memoryID, "target", result.Record.ID, "error", err)
			continue
		}
		receipt.CrossEdgesCreated++
	}
}

// retryWithBackoff retries fn on retryable errors with exponential backoff.
// Non-retryable errors fail immediately.
func retryWithBackoff(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := base * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !types.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func outcome(err error) StepOutcome {
	if err != nil {
		return StepOutcome{OK: false, Error: err.Error()}
	}
	return StepOutcome{OK: true}
}

// topicFor returns the turn's explicit topic or derives one from the opening
// words of the user text.
func topicFor(turn Turn) string {
	if turn.Topic != "" {
		return turn.Topic
	}
	words := strings.Fields(turn.UserText)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ")
}

const previewLimit = 120

// preview truncates text for storage on graph nodes, respecting rune
// boundaries.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}

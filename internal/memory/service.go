package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/uspq/neko-ai/internal/config"
	"github.com/uspq/neko-ai/internal/database"
	"github.com/uspq/neko-ai/internal/memory/embedder"
	"github.com/uspq/neko-ai/internal/memory/graph"
	"github.com/uspq/neko-ai/internal/memory/history"
	"github.com/uspq/neko-ai/internal/memory/rerank"
	"github.com/uspq/neko-ai/internal/memory/vector"
	"github.com/uspq/neko-ai/internal/types"
)

// settingsCacheTTL bounds staleness of cached conversation settings.
const settingsCacheTTL = 5 * time.Minute

// Engine is the operation surface of the memory engine. Both Service and
// TracedService implement it, so callers can swap in the traced decorator.
type Engine interface {
	CreateConversation(ctx context.Context, title string, settings *database.ConversationSettings) (*database.Conversation, error)
	GetConversation(ctx context.Context, id types.ID) (*database.Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]database.Conversation, error)
	UpdateConversationSettings(ctx context.Context, id types.ID, settings database.ConversationSettings) error
	PersistTurn(ctx context.Context, turn Turn) (*TurnReceipt, error)
	RetrieveContext(ctx context.Context, conversationID types.ID, queryText string, opts RetrieveOptions) (*FusedContext, error)
	DeleteConversation(ctx context.Context, conversationID types.ID) (*DeleteReport, error)
	PurgeExpired(ctx context.Context) (*PurgeReport, error)
	SearchMemories(ctx context.Context, keyword string, limit int, conversationID types.ID) ([]SearchResult, error)
	Statistics(ctx context.Context) (*Statistics, error)
	Health(ctx context.Context) map[string]types.HealthStatus
	Close(ctx context.Context) error
}

// Service is the memory engine facade exposed to the chat layer. It owns the
// write pipeline, the fusion engine, and the lifecycle manager, and
// serializes writes per conversation.
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *database.DB
	convs    *database.ConversationDAO
	vectors  vector.VectorStore
	graphs   graph.GraphStore
	log      history.HistoryLog
	embedder embedder.Embedder

	pipeline  *writePipeline
	fusion    *fusionEngine
	lifecycle *lifecycleManager

	locks *conversationLocks
	// settingsCache holds ConversationSettings keyed by conversation id;
	// hot-path writes would otherwise hit SQLite on every turn.
	settingsCache *ristretto.Cache

	closeOnce sync.Once
	closeErr  error
}

// NewService builds a Service from configuration, opening the database and
// constructing all store backends.
func NewService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.OpenWithConfig(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		BusyTimeout:     cfg.Database.BusyTimeout,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	vectors, err := vector.NewVectorStore(vector.StoreConfig{
		Backend:     cfg.Vector.Backend,
		StoragePath: cfg.Vector.StoragePath,
		Dimensions:  cfg.Vector.Dimensions,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	graphs, err := graph.NewGraphStore(ctx, graph.StoreConfig{
		Backend: cfg.Graph.Backend,
		Neo4j: graph.Neo4jConfig{
			URI:                     cfg.Graph.URI,
			Username:                cfg.Graph.Username,
			Password:                cfg.Graph.Password,
			Database:                cfg.Graph.Database,
			MaxConnectionPoolSize:   50,
			ConnectionTimeout:       30 * time.Second,
			MaxTransactionRetryTime: 30 * time.Second,
		},
	})
	if err != nil {
		vectors.Close()
		db.Close()
		return nil, err
	}

	emb, err := embedder.CreateEmbedder(embedder.EmbedderConfig{
		Provider:   cfg.Embedder.Provider,
		Model:      cfg.Embedder.Model,
		APIKey:     cfg.Embedder.APIKey,
		BaseURL:    cfg.Embedder.BaseURL,
		Dimensions: cfg.Embedder.Dimensions,
		MaxRetries: 3,
		Timeout:    30,
	})
	if err != nil {
		graphs.Close(ctx)
		vectors.Close()
		db.Close()
		return nil, err
	}

	// The fusion engine treats a nil reranker as "raw scores stand"; the
	// noop provider would overwrite real similarity scores with positional
	// placeholders, so it is only wired when explicitly enabled.
	var reranker rerank.Reranker
	if cfg.Rerank.Enabled {
		reranker, err = rerank.CreateReranker(rerank.RerankConfig{
			Provider: cfg.Rerank.Provider,
			Model:    cfg.Rerank.Model,
			APIKey:   cfg.Rerank.APIKey,
			BaseURL:  cfg.Rerank.BaseURL,
			TopN:     cfg.Rerank.TopN,
			Timeout:  30,
		})
		if err != nil {
			graphs.Close(ctx)
			vectors.Close()
			db.Close()
			return nil, err
		}
	}

	return NewServiceWithStores(cfg, logger, db, vectors, graphs,
		history.NewSqliteLog(db), emb, reranker)
}

// NewServiceWithStores builds a Service from pre-constructed collaborators.
// Tests use this with mock stores.
func NewServiceWithStores(
	cfg *config.Config,
	logger *slog.Logger,
	db *database.DB,
	vectors vector.VectorStore,
	graphs graph.GraphStore,
	log history.HistoryLog,
	emb embedder.Embedder,
	reranker rerank.Reranker,
) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, types.WrapError(ErrCodeServiceClosed,
			"failed to build settings cache", err)
	}

	s := &Service{
		cfg:           cfg,
		logger:        logger,
		db:            db,
		convs:         database.NewConversationDAO(db),
		vectors:       vectors,
		graphs:        graphs,
		log:           log,
		embedder:      emb,
		locks:         newConversationLocks(),
		settingsCache: cache,
	}
	s.pipeline = newWritePipeline(vectors, graphs, log, emb, cfg.Retrieval, logger)
	s.fusion = newFusionEngine(vectors, graphs, log, emb, reranker, cfg.Retrieval, logger)
	s.lifecycle = newLifecycleManager(vectors, graphs, log, s.conversationSettings, cfg.Forgetting, logger)
	return s, nil
}

// CreateConversation creates a conversation with the given title. Nil
// settings fall back to the defaults.
func (s *Service) CreateConversation(ctx context.Context, title string, settings *database.ConversationSettings) (*database.Conversation, error) {
	conv := &database.Conversation{
		ID:       types.NewID(),
		Title:    title,
		Settings: database.DefaultConversationSettings(),
	}
	if settings != nil {
		conv.Settings = *settings
	}
	if err := s.convs.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation retrieves a conversation by id.
func (s *Service) GetConversation(ctx context.Context, id types.ID) (*database.Conversation, error) {
	return s.convs.Get(ctx, id)
}

// ListConversations lists conversations, newest first.
func (s *Service) ListConversations(ctx context.Context, limit int) ([]database.Conversation, error) {
	return s.convs.List(ctx, limit)
}

// UpdateConversationSettings replaces a conversation's settings and drops the
// cached copy.
func (s *Service) UpdateConversationSettings(ctx context.Context, id types.ID, settings database.ConversationSettings) error {
	if err := s.convs.UpdateSettings(ctx, id, settings); err != nil {
		return err
	}
	s.settingsCache.Del(id.String())
	return nil
}

// conversationSettings resolves settings through the ristretto cache.
func (s *Service) conversationSettings(ctx context.Context, id types.ID) (database.ConversationSettings, error) {
	if cached, ok := s.settingsCache.Get(id.String()); ok {
		if settings, ok := cached.(database.ConversationSettings); ok {
			return settings, nil
		}
	}
	conv, err := s.convs.Get(ctx, id)
	if err != nil {
		return database.ConversationSettings{}, err
	}
	s.settingsCache.SetWithTTL(id.String(), conv.Settings, 1, settingsCacheTTL)
	return conv.Settings, nil
}

// PersistTurn writes one completed turn through the pipeline. Writes for the
// same conversation are serialized; the conversation must already exist.
func (s *Service) PersistTurn(ctx context.Context, turn Turn) (*TurnReceipt, error) {
	settings, err := s.conversationSettings(ctx, turn.ConversationID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(turn.ConversationID)
	defer unlock()

	receipt, err := s.pipeline.persist(ctx, turn, settings)
	if err != nil {
		return nil, err
	}

	if receipt.History.OK || receipt.Status == WriteStatusComplete {
		if err := s.convs.IncrementMessageCount(ctx, turn.ConversationID); err != nil {
			s.logger.Warn("failed to bump message count",
				"conversation_id", turn.ConversationID, "error", err)
		}
	}
	return receipt, nil
}

// RetrieveContext assembles a fused context for the query. Cross-conversation
// retrieval requires both the caller's opt-in and the conversation setting.
func (s *Service) RetrieveContext(ctx context.Context, conversationID types.ID, queryText string, opts RetrieveOptions) (*FusedContext, error) {
	settings, err := s.conversationSettings(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !settings.MemoryEnabled {
		return &FusedContext{ConversationID: conversationID, Entries: []ContextEntry{}}, nil
	}
	if !settings.CrossConversation {
		opts.IncludeCross = false
	}
	return s.fusion.retrieve(ctx, conversationID, queryText, opts)
}

// DeleteConversation cascades a delete across every store and removes the
// conversation record. Per-store failures are aggregated into the report.
func (s *Service) DeleteConversation(ctx context.Context, conversationID types.ID) (*DeleteReport, error) {
	if _, err := s.convs.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	report := s.lifecycle.deleteConversation(ctx, conversationID)

	if err := s.convs.Delete(ctx, conversationID); err != nil {
		report.ConversationError = err.Error()
	} else {
		report.ConversationDeleted = true
	}

	s.settingsCache.Del(conversationID.String())
	s.locks.Forget(conversationID)

	s.logger.Info("conversation deleted",
		"conversation_id", conversationID,
		"vectors_removed", report.Vector.Removed,
		"nodes_removed", report.Graph.Removed,
		"history_removed", report.History.Removed,
		"clean", report.Clean())
	return report, nil
}

// PurgeExpired runs one decay pass.
func (s *Service) PurgeExpired(ctx context.Context) (*PurgeReport, error) {
	return s.lifecycle.purgeExpired(ctx)
}

// SearchMemories finds memories by keyword, optionally scoped to one
// conversation. Results come back newest first; reranking refines the order
// when a reranker is wired.
func (s *Service) SearchMemories(ctx context.Context, keyword string, limit int, conversationID types.ID) ([]SearchResult, error) {
	if limit <= 0 {
		limit = s.cfg.Retrieval.TopK
	}
	nodes, err := s.graphs.SearchByKeyword(ctx, keyword, limit, conversationID)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(nodes))
	for rank, node := range nodes {
		results = append(results, SearchResult{
			MemoryID:       node.MemoryID,
			ConversationID: node.ConversationID,
			Content:        "User: " + node.UserPreview + "\nAssistant: " + node.AgentPreview,
			Topic:          node.Topic,
			Score:          recencyScore(rank, len(nodes)),
			Timestamp:      node.Timestamp,
		})
	}

	if reranker := s.fusion.reranker; reranker != nil && len(results) > 1 {
		documents := make([]string, len(results))
		for i, result := range results {
			documents[i] = result.Content
		}
		if ranked, err := reranker.Rerank(ctx, keyword, documents, len(documents)); err == nil {
			reordered := make([]SearchResult, 0, len(ranked))
			for _, r := range ranked {
				result := results[r.Index]
				result.Score = r.Score
				reordered = append(reordered, result)
			}
			results = reordered
		} else {
			s.logger.Warn("search rerank failed, keeping recency order", "error", err)
		}
	}
	return results, nil
}

// Statistics snapshots cross-store counts. Consistent is false when the
// vector index and graph disagree on how many memories exist.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{}

	conversationCount, err := s.convs.Count(ctx)
	if err != nil {
		return nil, types.WrapError(ErrCodeStatisticsFailed, "failed to count conversations", err)
	}
	stats.Conversations = conversationCount

	vectorCount, err := s.vectors.Count(ctx, types.ID(""))
	if err != nil {
		return nil, types.WrapError(ErrCodeStatisticsFailed, "failed to count vectors", err)
	}
	stats.VectorCount = vectorCount

	graphStats, err := s.graphs.Stats(ctx)
	if err != nil {
		return nil, types.WrapError(ErrCodeStatisticsFailed, "failed to read graph stats", err)
	}
	stats.GraphNodes = graphStats.NodeCount
	stats.GraphEdges = graphStats.EdgeCount

	historyCount, err := s.log.Count(ctx, types.ID(""))
	if err != nil {
		return nil, types.WrapError(ErrCodeStatisticsFailed, "failed to count history", err)
	}
	stats.HistoryCount = historyCount

	stats.Consistent = stats.VectorCount == stats.GraphNodes
	return stats, nil
}

// Health reports per-store health.
func (s *Service) Health(ctx context.Context) map[string]types.HealthStatus {
	return map[string]types.HealthStatus{
		"vector":   s.vectors.Health(ctx),
		"graph":    s.graphs.Health(ctx),
		"history":  s.log.Health(ctx),
		"embedder": s.embedder.Health(ctx),
	}
}

// Close releases every store and the database. It is safe to call from
// multiple goroutines; only the first call performs the shutdown and later
// calls return its result.
func (s *Service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		var firstErr error
		if err := s.vectors.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.graphs.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		s.settingsCache.Close()
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.closeErr = firstErr
	})
	return s.closeErr
}

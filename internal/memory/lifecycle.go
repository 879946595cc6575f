package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/uspq/neko-ai/internal/config"
	"github.com/uspq/neko-ai/internal/database"
	"github.com/uspq/neko-ai/internal/memory/graph"
	"github.com/uspq/neko-ai/internal/memory/history"
	"github.com/uspq/neko-ai/internal/memory/vector"
	"github.com/uspq/neko-ai/internal/types"
)

// settingsLookup resolves a conversation's settings. The service backs this
// with a cached DAO read.
type settingsLookup func(ctx context.Context, conversationID types.ID) (database.ConversationSettings, error)

// lifecycleManager implements the two forgetting mechanisms: the periodic
// TTL decay pass and the synchronous conversation cascade delete.
type lifecycleManager struct {
	vectors  vector.VectorStore
	graphs   graph.GraphStore
	log      history.HistoryLog
	settings settingsLookup
	cfg      config.ForgettingConfig
	logger   *slog.Logger
}

func newLifecycleManager(
	vectors vector.VectorStore,
	graphs graph.GraphStore,
	log history.HistoryLog,
	settings settingsLookup,
	cfg config.ForgettingConfig,
	logger *slog.Logger,
) *lifecycleManager {
	return &lifecycleManager{
		vectors:  vectors,
		graphs:   graphs,
		log:      log,
		settings: settings,
		cfg:      cfg,
		logger:   logger,
	}
}

// purgeExpired removes memories older than the TTL that have no protecting
// edge and sit below the usage floor. Memories in conversations with
// forgetting disabled are spared.
func (m *lifecycleManager) purgeExpired(ctx context.Context) (*PurgeReport, error) {
	report := &PurgeReport{}
	if !m.cfg.Enabled {
		return report, nil
	}

	cutoff := time.Now().UTC().Add(-m.cfg.TTL)
	candidates, err := m.graphs.ExpiredCandidates(ctx, cutoff, m.cfg.MinEdgeWeight, m.cfg.UsageFloor)
	if err != nil {
		return nil, types.WrapError(ErrCodeLifecycleFailed,
			"failed to scan for expired memories", err)
	}
	report.Candidates = len(candidates)

	for _, memoryID := range candidates {
		node, err := m.graphs.Node(ctx, memoryID)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			continue
		}

		settings, err := m.settings(ctx, node.ConversationID)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		if !settings.ForgettingEnabled {
			report.Protected++
			continue
		}

		ok := true
		if err := m.vectors.Delete(ctx, memoryID); err != nil {
			report.Errors = append(report.Errors, err.Error())
			ok = false
		}
		if err := m.graphs.DeleteNode(ctx, memoryID); err != nil {
			report.Errors = append(report.Errors, err.Error())
			ok = false
		}
		if !m.cfg.KeepHistory {
			if err := m.log.DeleteMemory(ctx, memoryID); err != nil {
				report.Errors = append(report.Errors, err.Error())
			}
		}
		if ok {
			report.Removed++
		}
	}

	m.logger.Info("decay pass finished",
		"candidates", report.Candidates,
		"removed", report.Removed,
		"protected", report.Protected,
		"errors", len(report.Errors))
	return report, nil
}

// deleteConversation cascades a delete across all three stores, aggregating
// per-store outcomes instead of stopping at the first failure.
func (m *lifecycleManager) deleteConversation(ctx context.Context, conversationID types.ID) *DeleteReport {
	report := &DeleteReport{ConversationID: conversationID}

	if count, err := m.vectors.DeleteByConversation(ctx, conversationID); err != nil {
		report.Vector.Error = err.Error()
	} else {
		report.Vector.Removed = count
	}

	if count, err := m.graphs.DeleteConversation(ctx, conversationID); err != nil {
		report.Graph.Error = err.Error()
	} else {
		report.Graph.Removed = count
	}

	if count, err := m.log.DeleteConversation(ctx, conversationID); err != nil {
		report.History.Error = err.Error()
	} else {
		report.History.Removed = count
	}

	return report
}

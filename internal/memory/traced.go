package memory

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/uspq/neko-ai/internal/database"
	"github.com/uspq/neko-ai/internal/types"
)

// TracedService wraps a Service with OpenTelemetry tracing. Each operation
// gets a span named "neko.memory.{operation}" carrying the conversation id
// and result-shape attributes.
type TracedService struct {
	inner  *Service
	tracer trace.Tracer
}

// NewTracedService wraps the given service with tracing.
func NewTracedService(inner *Service, tracer trace.Tracer) *TracedService {
	return &TracedService{inner: inner, tracer: tracer}
}

// Conversation CRUD is a single DAO round-trip, so those operations pass
// through without their own spans.

func (t *TracedService) CreateConversation(ctx context.Context, title string, settings *database.ConversationSettings) (*database.Conversation, error) {
	return t.inner.CreateConversation(ctx, title, settings)
}

func (t *TracedService) GetConversation(ctx context.Context, id types.ID) (*database.Conversation, error) {
	return t.inner.GetConversation(ctx, id)
}

func (t *TracedService) ListConversations(ctx context.Context, limit int) ([]database.Conversation, error) {
	return t.inner.ListConversations(ctx, limit)
}

func (t *TracedService) UpdateConversationSettings(ctx context.Context, id types.ID, settings database.ConversationSettings) error {
	return t.inner.UpdateConversationSettings(ctx, id, settings)
}

// PersistTurn persists a turn with tracing.
func (t *TracedService) PersistTurn(ctx context.Context, turn Turn) (*TurnReceipt, error) {
	ctx, span := t.tracer.Start(ctx, "neko.memory.persist_turn")
	defer span.End()

	span.SetAttributes(
		attribute.String("neko.conversation_id", turn.ConversationID.String()),
	)

	receipt, err := t.inner.PersistTurn(ctx, turn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("neko.memory_id", receipt.MemoryID.String()),
		attribute.String("neko.write_status", string(receipt.Status)),
		attribute.Int("neko.edges_created", receipt.EdgesCreated),
		attribute.Int("neko.cross_edges_created", receipt.CrossEdgesCreated),
	)
	span.SetStatus(codes.Ok, "turn persisted")
	return receipt, nil
}

// RetrieveContext retrieves a fused context with tracing.
func (t *TracedService) RetrieveContext(ctx context.Context, conversationID types.ID, queryText string, opts RetrieveOptions) (*FusedContext, error) {
	ctx, span := t.tracer.Start(ctx, "neko.memory.retrieve_context")
	defer span.End()

	span.SetAttributes(
		attribute.String("neko.conversation_id", conversationID.String()),
		attribute.Bool("neko.include_cross", opts.IncludeCross),
	)

	fused, err := t.inner.RetrieveContext(ctx, conversationID, queryText, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("neko.entry_count", len(fused.Entries)),
		attribute.Int("neko.total_tokens", fused.TotalTokens),
		attribute.Bool("neko.degraded", fused.Degraded),
	)
	span.SetStatus(codes.Ok, "context retrieved")
	return fused, nil
}

// DeleteConversation cascades a delete with tracing.
func (t *TracedService) DeleteConversation(ctx context.Context, conversationID types.ID) (*DeleteReport, error) {
	ctx, span := t.tracer.Start(ctx, "neko.memory.delete_conversation")
	defer span.End()

	span.SetAttributes(
		attribute.String("neko.conversation_id", conversationID.String()),
	)

	report, err := t.inner.DeleteConversation(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("neko.vectors_removed", report.Vector.Removed),
		attribute.Int("neko.nodes_removed", report.Graph.Removed),
		attribute.Int("neko.history_removed", report.History.Removed),
		attribute.Bool("neko.clean", report.Clean()),
	)
	span.SetStatus(codes.Ok, "conversation deleted")
	return report, nil
}

// PurgeExpired runs a decay pass with tracing.
func (t *TracedService) PurgeExpired(ctx context.Context) (*PurgeReport, error) {
	ctx, span := t.tracer.Start(ctx, "neko.memory.purge_expired")
	defer span.End()

	report, err := t.inner.PurgeExpired(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("neko.candidates", report.Candidates),
		attribute.Int("neko.removed", report.Removed),
		attribute.Int("neko.protected", report.Protected),
	)
	span.SetStatus(codes.Ok, "purge finished")
	return report, nil
}

// SearchMemories searches by keyword with tracing.
func (t *TracedService) SearchMemories(ctx context.Context, keyword string, limit int, conversationID types.ID) ([]SearchResult, error) {
	ctx, span := t.tracer.Start(ctx, "neko.memory.search")
	defer span.End()

	span.SetAttributes(
		attribute.String("neko.conversation_id", conversationID.String()),
	)

	results, err := t.inner.SearchMemories(ctx, keyword, limit, conversationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("neko.result_count", len(results)))
	span.SetStatus(codes.Ok, "search finished")
	return results, nil
}

// Statistics snapshots cross-store counts with tracing.
func (t *TracedService) Statistics(ctx context.Context) (*Statistics, error) {
	ctx, span := t.tracer.Start(ctx, "neko.memory.statistics")
	defer span.End()

	stats, err := t.inner.Statistics(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("neko.vector_count", stats.VectorCount),
		attribute.Int("neko.graph_nodes", stats.GraphNodes),
		attribute.Bool("neko.consistent", stats.Consistent),
	)
	span.SetStatus(codes.Ok, "statistics collected")
	return stats, nil
}

// Health passes through without tracing.
func (t *TracedService) Health(ctx context.Context) map[string]types.HealthStatus {
	return t.inner.Health(ctx)
}

// Close closes the underlying service with tracing.
func (t *TracedService) Close(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "neko.memory.close")
	defer span.End()

	if err := t.inner.Close(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "service closed")
	return nil
}

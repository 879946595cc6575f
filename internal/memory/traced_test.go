package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/uspq/neko-ai/internal/config"
	"github.com/uspq/neko-ai/internal/database"
	"github.com/uspq/neko-ai/internal/memory/embedder"
	"github.com/uspq/neko-ai/internal/memory/graph"
	"github.com/uspq/neko-ai/internal/memory/history"
	"github.com/uspq/neko-ai/internal/memory/vector"
	"github.com/uspq/neko-ai/internal/types"
)

func setupTracedService(t *testing.T) (*TracedService, *tracetest.InMemoryExporter) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "neko.db"))
	require.NoError(t, err)

	svc, err := NewServiceWithStores(config.NewDefaultConfig(), discardLogger(), db,
		vector.NewMockVectorStore(), graph.NewMockGraphStore(),
		history.NewMockLog(), embedder.NewMockEmbedder(testDims), nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close(context.Background()) })

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return NewTracedService(svc, tp.Tracer("test")), exporter
}

func spanNames(exporter *tracetest.InMemoryExporter) []string {
	spans := exporter.GetSpans()
	names := make([]string, len(spans))
	for i, span := range spans {
		names[i] = span.Name
	}
	return names
}

func TestTracedService_PersistTurnSpan(t *testing.T) {
	traced, exporter := setupTracedService(t)
	ctx := context.Background()

	conv, err := traced.CreateConversation(ctx, "traced", nil)
	require.NoError(t, err)

	receipt, err := traced.PersistTurn(ctx, Turn{
		ConversationID: conv.ID,
		UserText:       "hello",
		AgentText:      "hi",
		Timestamp:      time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, WriteStatusComplete, receipt.Status)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "neko.memory.persist_turn", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	attrs := make(map[string]any)
	for _, attr := range span.Attributes {
		attrs[string(attr.Key)] = attr.Value.AsInterface()
	}
	assert.Equal(t, conv.ID.String(), attrs["neko.conversation_id"])
	assert.Equal(t, string(WriteStatusComplete), attrs["neko.write_status"])
}

func TestTracedService_ErrorSpan(t *testing.T) {
	traced, exporter := setupTracedService(t)

	// Persisting into an unknown conversation fails; the span records it.
	_, err := traced.PersistTurn(context.Background(), Turn{
		ConversationID: types.NewID(),
		UserText:       "orphan",
	})
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestTracedService_RetrieveAndStatisticsSpans(t *testing.T) {
	traced, exporter := setupTracedService(t)
	ctx := context.Background()

	conv, err := traced.CreateConversation(ctx, "traced", nil)
	require.NoError(t, err)

	_, err = traced.RetrieveContext(ctx, conv.ID, "anything", RetrieveOptions{})
	require.NoError(t, err)
	_, err = traced.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"neko.memory.retrieve_context", "neko.memory.statistics"},
		spanNames(exporter))
}

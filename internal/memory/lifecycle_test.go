package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uspq/neko-ai/internal/config"
	"github.com/uspq/neko-ai/internal/database"
	"github.com/uspq/neko-ai/internal/memory/graph"
	"github.com/uspq/neko-ai/internal/memory/history"
	"github.com/uspq/neko-ai/internal/memory/vector"
	"github.com/uspq/neko-ai/internal/types"
)

type lifecycleFixture struct {
	vectors  *vector.MockVectorStore
	graphs   *graph.MockGraphStore
	log      *history.MockLog
	settings map[types.ID]database.ConversationSettings
	manager  *lifecycleManager
}

func newLifecycleFixture(t *testing.T, cfg config.ForgettingConfig) *lifecycleFixture {
	t.Helper()
	f := &lifecycleFixture{
		vectors:  vector.NewMockVectorStore(),
		graphs:   graph.NewMockGraphStore(),
		log:      history.NewMockLog(),
		settings: make(map[types.ID]database.ConversationSettings),
	}
	lookup := func(ctx context.Context, conversationID types.ID) (database.ConversationSettings, error) {
		settings, ok := f.settings[conversationID]
		if !ok {
			return database.ConversationSettings{}, types.NewError(
				types.CONVERSATION_NOT_FOUND, "conversation not found")
		}
		return settings, nil
	}
	f.manager = newLifecycleManager(f.vectors, f.graphs, f.log, lookup, cfg, discardLogger())
	return f
}

// seedFullMemory installs one memory across all three stores.
func (f *lifecycleFixture) seedFullMemory(t *testing.T, convID types.ID, ts time.Time) types.ID {
	t.Helper()
	ctx := context.Background()
	memoryID := types.NewMemoryID(convID, ts)

	require.NoError(t, f.vectors.Insert(ctx, vector.Record{
		ID:             memoryID,
		ConversationID: convID,
		Content:        "User: hello\nAssistant: hi",
		Embedding:      []float64{1, 0, 0},
		Timestamp:      ts,
	}))
	require.NoError(t, f.graphs.CreateNode(ctx, graph.Node{
		MemoryID:       memoryID,
		ConversationID: convID,
		UserPreview:    "hello",
		Timestamp:      ts,
	}))
	require.NoError(t, f.log.Append(ctx, history.Entry{
		ConversationID: convID,
		MemoryID:       memoryID,
		UserText:       "hello",
		AgentText:      "hi",
		Timestamp:      ts,
	}))
	return memoryID
}

func decayConfig() config.ForgettingConfig {
	return config.ForgettingConfig{
		Enabled:       true,
		TTL:           24 * time.Hour,
		MinEdgeWeight: 0.5,
		UsageFloor:    3,
		KeepHistory:   false,
	}
}

func TestPurgeExpired_Disabled(t *testing.T) {
	cfg := decayConfig()
	cfg.Enabled = false
	f := newLifecycleFixture(t, cfg)
	f.settings[types.NewID()] = database.DefaultConversationSettings()

	report, err := f.manager.purgeExpired(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Candidates)
	assert.Zero(t, report.Removed)
	assert.Empty(t, f.graphs.Calls())
}

func TestPurgeExpired_RemovesAcrossStores(t *testing.T) {
	f := newLifecycleFixture(t, decayConfig())
	ctx := context.Background()
	convID := types.NewID()
	f.settings[convID] = database.DefaultConversationSettings()

	expired := f.seedFullMemory(t, convID, time.Now().UTC().Add(-48*time.Hour))
	fresh := f.seedFullMemory(t, convID, time.Now().UTC().Add(-time.Hour))

	report, err := f.manager.purgeExpired(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Removed)
	assert.Zero(t, report.Protected)
	assert.Empty(t, report.Errors)

	_, err = f.vectors.Get(ctx, expired)
	assert.Error(t, err)
	_, err = f.graphs.Node(ctx, expired)
	assert.Error(t, err)
	count, err := f.log.Count(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = f.vectors.Get(ctx, fresh)
	assert.NoError(t, err)
}

func TestPurgeExpired_KeepHistory(t *testing.T) {
	cfg := decayConfig()
	cfg.KeepHistory = true
	f := newLifecycleFixture(t, cfg)
	ctx := context.Background()
	convID := types.NewID()
	f.settings[convID] = database.DefaultConversationSettings()

	expired := f.seedFullMemory(t, convID, time.Now().UTC().Add(-48*time.Hour))

	report, err := f.manager.purgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)

	// The history row stays as a cold record.
	_, err = f.vectors.Get(ctx, expired)
	assert.Error(t, err)
	count, err := f.log.Count(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPurgeExpired_ProtectedConversation(t *testing.T) {
	f := newLifecycleFixture(t, decayConfig())
	ctx := context.Background()
	convID := types.NewID()
	settings := database.DefaultConversationSettings()
	settings.ForgettingEnabled = false
	f.settings[convID] = settings

	protected := f.seedFullMemory(t, convID, time.Now().UTC().Add(-48*time.Hour))

	report, err := f.manager.purgeExpired(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Protected)
	assert.Zero(t, report.Removed)

	_, err = f.vectors.Get(ctx, protected)
	assert.NoError(t, err)
}

func TestPurgeExpired_EdgeProtection(t *testing.T) {
	f := newLifecycleFixture(t, decayConfig())
	ctx := context.Background()
	convID := types.NewID()
	f.settings[convID] = database.DefaultConversationSettings()

	old := f.seedFullMemory(t, convID, time.Now().UTC().Add(-48*time.Hour))
	anchor := f.seedFullMemory(t, convID, time.Now().UTC().Add(-47*time.Hour))
	require.NoError(t, f.graphs.CreateEdge(ctx, graph.Edge{
		SourceID: old,
		TargetID: anchor,
		Weight:   0.9,
	}))

	report, err := f.manager.purgeExpired(ctx)
	require.NoError(t, err)

	// A strong edge anchors both endpoints against decay.
	assert.Zero(t, report.Candidates)
	assert.Zero(t, report.Removed)
}

func TestPurgeExpired_SettingsLookupFailure(t *testing.T) {
	f := newLifecycleFixture(t, decayConfig())
	ctx := context.Background()
	convID := types.NewID()
	// No settings registered for the conversation.

	f.seedFullMemory(t, convID, time.Now().UTC().Add(-48*time.Hour))

	report, err := f.manager.purgeExpired(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Candidates)
	assert.Zero(t, report.Removed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "not found")
}

func TestDeleteConversation_Cascades(t *testing.T) {
	f := newLifecycleFixture(t, decayConfig())
	ctx := context.Background()
	convA := types.NewID()
	convB := types.NewID()

	f.seedFullMemory(t, convA, time.Now().UTC().Add(-2*time.Hour))
	f.seedFullMemory(t, convA, time.Now().UTC().Add(-time.Hour))
	survivor := f.seedFullMemory(t, convB, time.Now().UTC().Add(-time.Hour))

	report := f.manager.deleteConversation(ctx, convA)

	assert.Equal(t, 2, report.Vector.Removed)
	assert.Equal(t, 2, report.Graph.Removed)
	assert.Equal(t, 2, report.History.Removed)
	assert.Empty(t, report.Vector.Error)

	_, err := f.vectors.Get(ctx, survivor)
	assert.NoError(t, err)
}

func TestDeleteConversation_AggregatesFailures(t *testing.T) {
	f := newLifecycleFixture(t, decayConfig())
	ctx := context.Background()
	convID := types.NewID()

	f.seedFullMemory(t, convID, time.Now().UTC().Add(-time.Hour))
	f.vectors.SetDeleteError(types.NewError(vector.ErrCodeVectorStoreFailed, "vector delete refused"))

	report := f.manager.deleteConversation(ctx, convID)

	// The vector failure does not stop the graph and history deletes.
	assert.NotEmpty(t, report.Vector.Error)
	assert.Equal(t, 1, report.Graph.Removed)
	assert.Equal(t, 1, report.History.Removed)
}

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uspq/neko-ai/internal/database"
	"github.com/uspq/neko-ai/internal/types"
)

func testLog(t *testing.T) *SqliteLog {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "neko.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSqliteLog(db)
}

func testEntry(convID types.ID, ts time.Time, user string) Entry {
	return Entry{
		ConversationID: convID,
		MemoryID:       types.NewMemoryID(convID, ts),
		UserText:       user,
		AgentText:      "reply to " + user,
		Timestamp:      ts,
	}
}

func TestSqliteLog_AppendAndWindow(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()
	convID := types.NewID()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		entry := testEntry(convID, base.Add(time.Duration(i)*time.Minute), "turn")
		require.NoError(t, log.Append(ctx, entry))
	}

	entries, err := log.Window(ctx, convID, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Most-recent first.
	assert.Equal(t, base.Add(4*time.Minute), entries[0].Timestamp.UTC())
	assert.Equal(t, base.Add(3*time.Minute), entries[1].Timestamp.UTC())
	assert.Equal(t, base.Add(2*time.Minute), entries[2].Timestamp.UTC())
	assert.Equal(t, convID, entries[0].ConversationID)
}

func TestSqliteLog_AppendIdempotent(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()
	convID := types.NewID()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entry := testEntry(convID, ts, "hello")
	require.NoError(t, log.Append(ctx, entry))

	// Retrying the same (conversation, timestamp) key is a no-op.
	require.NoError(t, log.Append(ctx, entry))

	count, err := log.Count(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entries, err := log.Window(ctx, convID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].UserText)
}

func TestSqliteLog_AppendValidation(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()
	ts := time.Now()

	err := log.Append(ctx, Entry{MemoryID: types.NewID(), Timestamp: ts})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, ErrCodeHistoryInvalidEntry))

	err = log.Append(ctx, Entry{ConversationID: types.NewID(), Timestamp: ts})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, ErrCodeHistoryInvalidEntry))

	err = log.Append(ctx, Entry{ConversationID: types.NewID(), MemoryID: types.NewID()})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, ErrCodeHistoryInvalidEntry))
}

func TestSqliteLog_WindowIsolation(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()
	convA := types.NewID()
	convB := types.NewID()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, testEntry(convA, base, "from a")))
	require.NoError(t, log.Append(ctx, testEntry(convB, base, "from b")))
	require.NoError(t, log.Append(ctx, testEntry(convB, base.Add(time.Minute), "from b again")))

	entries, err := log.Window(ctx, convA, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "from a", entries[0].UserText)
	for _, entry := range entries {
		assert.Equal(t, convA, entry.ConversationID)
	}
}

func TestSqliteLog_WindowEmpty(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()

	entries, err := log.Window(ctx, types.NewID(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = log.Window(ctx, types.NewID(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSqliteLog_DeleteConversation(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()
	convA := types.NewID()
	convB := types.NewID()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(ctx, testEntry(convA, base.Add(time.Duration(i)*time.Minute), "a")))
	}
	require.NoError(t, log.Append(ctx, testEntry(convB, base, "b")))

	removed, err := log.DeleteConversation(ctx, convA)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	count, err := log.Count(ctx, convA)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Other conversations are untouched, deleting again removes nothing.
	count, err = log.Count(ctx, convB)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	removed, err = log.DeleteConversation(ctx, convA)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestSqliteLog_DeleteMemory(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()
	convID := types.NewID()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	keep := testEntry(convID, base, "keep")
	drop := testEntry(convID, base.Add(time.Minute), "drop")
	require.NoError(t, log.Append(ctx, keep))
	require.NoError(t, log.Append(ctx, drop))

	require.NoError(t, log.DeleteMemory(ctx, drop.MemoryID))
	require.NoError(t, log.DeleteMemory(ctx, drop.MemoryID)) // idempotent

	entries, err := log.Window(ctx, convID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, keep.MemoryID, entries[0].MemoryID)
}

func TestSqliteLog_CountTotal(t *testing.T) {
	log := testLog(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, testEntry(types.NewID(), base, "x")))
	require.NoError(t, log.Append(ctx, testEntry(types.NewID(), base, "y")))

	// Zero conversation id counts everything.
	total, err := log.Count(ctx, types.ID(""))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSqliteLog_Health(t *testing.T) {
	log := testLog(t)
	assert.Equal(t, types.HealthStateHealthy, log.Health(context.Background()).State)
}

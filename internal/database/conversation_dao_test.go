package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uspq/neko-ai/internal/types"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "neko.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConversationDAO_CreateAndGet(t *testing.T) {
	dao := NewConversationDAO(testDB(t))
	ctx := context.Background()

	conv := &Conversation{
		ID:       types.NewID(),
		Title:    "trip planning",
		Settings: DefaultConversationSettings(),
	}
	require.NoError(t, dao.Create(ctx, conv))

	got, err := dao.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, "trip planning", got.Title)
	assert.True(t, got.Settings.MemoryEnabled)
	assert.False(t, got.Settings.CrossConversation)
	assert.Equal(t, 0, got.MessageCount)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestConversationDAO_GetMissing(t *testing.T) {
	dao := NewConversationDAO(testDB(t))

	_, err := dao.Get(context.Background(), types.NewID())
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.CONVERSATION_NOT_FOUND))
}

func TestConversationDAO_IncrementMessageCount(t *testing.T) {
	dao := NewConversationDAO(testDB(t))
	ctx := context.Background()

	conv := &Conversation{ID: types.NewID(), Title: "counter", Settings: DefaultConversationSettings()}
	require.NoError(t, dao.Create(ctx, conv))

	require.NoError(t, dao.IncrementMessageCount(ctx, conv.ID))
	require.NoError(t, dao.IncrementMessageCount(ctx, conv.ID))

	got, err := dao.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)

	err = dao.IncrementMessageCount(ctx, types.NewID())
	assert.True(t, types.HasCode(err, types.CONVERSATION_NOT_FOUND))
}

func TestConversationDAO_UpdateSettings(t *testing.T) {
	dao := NewConversationDAO(testDB(t))
	ctx := context.Background()

	conv := &Conversation{ID: types.NewID(), Title: "settings", Settings: DefaultConversationSettings()}
	require.NoError(t, dao.Create(ctx, conv))

	updated := ConversationSettings{MemoryEnabled: true, CrossConversation: true, ForgettingEnabled: false}
	require.NoError(t, dao.UpdateSettings(ctx, conv.ID, updated))

	got, err := dao.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got.Settings)
}

func TestConversationDAO_ListAndCount(t *testing.T) {
	dao := NewConversationDAO(testDB(t))
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		conv := &Conversation{ID: types.NewID(), Title: title, Settings: DefaultConversationSettings()}
		require.NoError(t, dao.Create(ctx, conv))
	}

	list, err := dao.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	count, err := dao.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestConversationDAO_Delete(t *testing.T) {
	dao := NewConversationDAO(testDB(t))
	ctx := context.Background()

	conv := &Conversation{ID: types.NewID(), Title: "doomed", Settings: DefaultConversationSettings()}
	require.NoError(t, dao.Create(ctx, conv))

	require.NoError(t, dao.Delete(ctx, conv.ID))

	_, err := dao.Get(ctx, conv.ID)
	assert.True(t, types.HasCode(err, types.CONVERSATION_NOT_FOUND))

	// Deleting a missing conversation is a no-op.
	assert.NoError(t, dao.Delete(ctx, conv.ID))
}

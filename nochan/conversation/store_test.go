package conversation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nochan-bot/nochan/nochan/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Connect(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database, zerolog.Nop())
}

func TestGetActiveEmpty(t *testing.T) {
	store := newTestStore(t)

	conv, err := store.GetActive(context.Background(), "private:1001")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestCreateAndGetActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "private:1001")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, StatusActive, created.Status)
	assert.Empty(t, created.ContinuationToken)

	got, err := store.GetActive(ctx, "private:1001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "private:1001", got.Key)
	assert.Empty(t, got.ContinuationToken)

	// Keys are isolated from each other
	other, err := store.GetActive(ctx, "group:2002")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestArchiveThenCreateRotatesConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old, err := store.Create(ctx, "group:2002")
	require.NoError(t, err)
	require.NoError(t, store.SetContinuationToken(ctx, old.ID, "ses_old"))

	archived, err := store.ArchiveActive(ctx, "group:2002")
	require.NoError(t, err)
	assert.True(t, archived)

	fresh, err := store.Create(ctx, "group:2002")
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)

	got, err := store.GetActive(ctx, "group:2002")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, fresh.ID, got.ID)
	assert.Empty(t, got.ContinuationToken, "new conversation starts without a token")
}

func TestArchiveActiveWithoutActiveRow(t *testing.T) {
	store := newTestStore(t)

	archived, err := store.ArchiveActive(context.Background(), "private:404")
	require.NoError(t, err)
	assert.False(t, archived)
}

func TestSetContinuationToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, "private:1001")
	require.NoError(t, err)

	require.NoError(t, store.SetContinuationToken(ctx, conv.ID, "ses_abc"))

	got, err := store.GetActive(ctx, "private:1001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ses_abc", got.ContinuationToken)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestSetContinuationTokenUnknownID(t *testing.T) {
	store := newTestStore(t)

	// Nonexistent id updates nothing and is not an error
	err := store.SetContinuationToken(context.Background(), "no-such-id", "ses_x")
	require.NoError(t, err)
}

func TestGetActivePrefersMostRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// The store tolerates multiple active rows per key (archive-before-create
	// is call discipline, not a constraint); the newest one wins.
	first, err := store.Create(ctx, "private:1001")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := store.Create(ctx, "private:1001")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	got, err := store.GetActive(ctx, "private:1001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
}

package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/oba/pkg/message"
)

func newTestStore(t *testing.T, opts ...SQLiteOption) *SQLite {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "sessions.db"), zerolog.Nop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLite_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	history := sampleHistory(t)

	require.NoError(t, store.Append(ctx, "s1", history...))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, history, loaded)
}

func TestSQLite_LoadWithoutClone(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, WithoutEphemeralClone())
	history := sampleHistory(t)

	require.NoError(t, store.Append(ctx, "s1", history...))

	// every load hits the database and still returns append order
	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, history, loaded)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")
	history := sampleHistory(t)

	store, err := NewSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "s1", history...))
	require.NoError(t, store.AddUsage(ctx, "s1", message.Usage{InputTokens: 42, TotalCost: 0.01}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, history, loaded)

	u, err := reopened.Usage(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 42, u.InputTokens)
}

func TestSQLite_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Append(ctx, "s1", message.NewContent(message.RoleUser, "one")))
	require.NoError(t, store.Append(ctx, "s2", message.NewContent(message.RoleUser, "two")))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "one", loaded[0].(*message.Content).Text)
}

func TestSQLite_AddUsageAccumulates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddUsage(ctx, "s1", message.Usage{InputTokens: 100, OutputTokens: 20, TotalCost: 0.01}))
	require.NoError(t, store.AddUsage(ctx, "s1", message.Usage{InputTokens: 50, TotalCost: 0.02, ToolCosts: 0.005}))

	u, err := store.Usage(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 150, u.InputTokens)
	assert.Equal(t, 20, u.OutputTokens)
	assert.InDelta(t, 0.005, u.ToolCosts, 1e-9)
}

func TestSQLite_UsageForUnknownSessionIsZero(t *testing.T) {
	store := newTestStore(t)

	u, err := store.Usage(context.Background(), "nope")
	require.NoError(t, err)
	assert.True(t, u.IsZero())
}

func TestSQLite_List(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Append(ctx, "beta",
		message.NewContent(message.RoleUser, "q"),
		message.NewContent(message.RoleAssistant, "a")))
	require.NoError(t, store.Append(ctx, "alpha", message.NewContent(message.RoleUser, "q")))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "alpha", summaries[0].ID)
	assert.Equal(t, 1, summaries[0].Messages)
	assert.Equal(t, "beta", summaries[1].ID)
	assert.Equal(t, 2, summaries[1].Messages)
	assert.False(t, summaries[1].UpdatedAt.IsZero())
}

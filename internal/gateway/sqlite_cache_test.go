package gateway

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/todo-calendar-sync/internal/domain"
	"github.com/k-negishi/todo-calendar-sync/internal/usecase"
)

var _ usecase.SnapshotCache = (*SQLiteSnapshotCache)(nil)

// newTestSnapshotCache 一時ディレクトリにDBを作るヘルパー
func newTestSnapshotCache(t *testing.T) *SQLiteSnapshotCache {
	t.Helper()
	cache, err := NewSQLiteSnapshotCache(filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestSnapshotCache_EmptyReportsMissing(t *testing.T) {
	cache := newTestSnapshotCache(t)

	tasks, ok, err := cache.LoadTasks(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, tasks)

	_, ok, err = cache.LoadCategories(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotCache_SaveOverwrites(t *testing.T) {
	cache := newTestSnapshotCache(t)
	ctx := context.Background()

	first := []domain.Task{{ID: "1", Title: "old", Date: "2024-01-01T09:00", End: "2024-01-01T10:00"}}
	second := []domain.Task{{
		ID:           "2",
		Title:        "new",
		Date:         "2024-01-02T09:00",
		End:          "2024-01-02T10:00",
		Category:     &domain.CategoryRef{ID: "3", Name: "Work"},
		Location:     &domain.Location{Lat: 37.5, Lng: 127},
		LocationName: "office",
	}}
	require.NoError(t, cache.SaveTasks(ctx, first))
	require.NoError(t, cache.SaveTasks(ctx, second))

	loaded, ok, err := cache.LoadTasks(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, loaded)
}

func TestSnapshotCache_EmptyListIsPresent(t *testing.T) {
	cache := newTestSnapshotCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SaveCategories(ctx, []domain.Category{}))
	categories, ok, err := cache.LoadCategories(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, categories)
	assert.Empty(t, categories)
}

func TestSnapshotCache_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	ctx := context.Background()

	cache, err := NewSQLiteSnapshotCache(path)
	require.NoError(t, err)
	fixed := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return fixed }
	require.NoError(t, cache.SaveCategories(ctx, []domain.Category{{ID: "1", Name: "일반", Color: "#cccccc"}}))
	require.NoError(t, cache.Close())

	reopened, err := NewSQLiteSnapshotCache(path)
	require.NoError(t, err)
	defer reopened.Close()

	categories, ok, err := reopened.LoadCategories(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []domain.Category{{ID: "1", Name: "일반", Color: "#cccccc"}}, categories)

	updatedAt, ok, err := reopened.UpdatedAt(ctx, snapshotKindCategories)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, updatedAt.Equal(fixed))

	_, ok, err = reopened.UpdatedAt(ctx, snapshotKindTasks)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotCache_WarmsTaskStore(t *testing.T) {
	cache := newTestSnapshotCache(t)
	ctx := context.Background()
	require.NoError(t, cache.SaveTasks(ctx, []domain.Task{{ID: "1", Title: "cached", Date: "2024-01-01T09:00", End: "2024-01-01T10:00"}}))

	store := usecase.NewTaskStore(nil, cache)
	assert.True(t, store.Warm(ctx))
	require.Len(t, store.List(), 1)
	assert.Equal(t, "cached", store.List()[0].Title)
}

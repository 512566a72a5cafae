// internal/store/snapshot_test.go
// SnapshotCache 单元测试 (miniredis)
package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSnapshotCache(t *testing.T) (*SnapshotCache, *miniredis.Miniredis, func()) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})

	cache := NewSnapshotCache(rdb, time.Hour)

	return cache, s, func() {
		rdb.Close()
		s.Close()
	}
}

func TestSnapshotCache_UpdateAndGet(t *testing.T) {
	cache, _, cleanup := setupSnapshotCache(t)
	defer cleanup()

	ctx := context.Background()
	at := time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)

	require.NoError(t, cache.Update(ctx, "lager", 5.35, 5.1234, at))

	snap, err := cache.Get(ctx, "lager")
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, "lager", snap.Drink)
	assert.Equal(t, 5.35, snap.Price)
	assert.Equal(t, 5.1234, snap.Mean)
	assert.True(t, snap.UpdatedAt.Equal(at))
}

func TestSnapshotCache_GetMissing(t *testing.T) {
	cache, _, cleanup := setupSnapshotCache(t)
	defer cleanup()

	snap, err := cache.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSnapshotCache_Update_SetsTTL(t *testing.T) {
	cache, s, cleanup := setupSnapshotCache(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Update(ctx, "lager", 5.00, 5.00, time.Now()))

	ttl := s.TTL("tapmarket:snapshot:lager")
	assert.Equal(t, time.Hour, ttl)
}

func TestSnapshotCache_Update_Overwrites(t *testing.T) {
	cache, _, cleanup := setupSnapshotCache(t)
	defer cleanup()

	ctx := context.Background()
	at := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	require.NoError(t, cache.Update(ctx, "lager", 5.00, 5.00, at))
	require.NoError(t, cache.Update(ctx, "lager", 5.45, 5.20, at.Add(time.Minute)))

	snap, err := cache.Get(ctx, "lager")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 5.45, snap.Price)
	assert.Equal(t, 5.20, snap.Mean)
}

func TestSnapshotCache_GetAll(t *testing.T) {
	cache, _, cleanup := setupSnapshotCache(t)
	defer cleanup()

	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, cache.Update(ctx, "lager", 5.00, 5.00, at))
	require.NoError(t, cache.Update(ctx, "stout", 6.00, 6.00, at))

	// cider 没有快照，应被跳过
	snaps, err := cache.GetAll(ctx, []string{"lager", "stout", "cider"})
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	byDrink := map[string]Snapshot{}
	for _, s := range snaps {
		byDrink[s.Drink] = s
	}
	assert.Equal(t, 5.00, byDrink["lager"].Price)
	assert.Equal(t, 6.00, byDrink["stout"].Price)
}

func TestSnapshotCache_GetAll_Empty(t *testing.T) {
	cache, _, cleanup := setupSnapshotCache(t)
	defer cleanup()

	snaps, err := cache.GetAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestSnapshotCache_Clear(t *testing.T) {
	cache, _, cleanup := setupSnapshotCache(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Update(ctx, "lager", 5.00, 5.00, time.Now()))
	require.NoError(t, cache.Update(ctx, "stout", 6.00, 6.00, time.Now()))

	require.NoError(t, cache.Clear(ctx, []string{"lager", "stout"}))

	snap, err := cache.Get(ctx, "lager")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/chest/pkg/cache"
	"github.com/yeisme/chest/pkg/internal/storage/kv"
)

type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func newStore(t *testing.T) kv.KVStore {
	t.Helper()

	store, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t))

	_, err := cache.Get[record](ctx, c, "absent")
	assert.True(t, cache.IsMiss(err))

	want := record{ID: "chestObject@aa", Name: "notes.txt", Size: 30}
	require.NoError(t, cache.Set(ctx, c, "obj", want, 0))

	got, err := cache.Get[record](ctx, c, "obj")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGet_DecodeError(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Set(ctx, "n", []byte("not json"), 0))

	_, err := cache.Get[int](ctx, cache.NewCache(store), "n")
	require.Error(t, err)
	assert.False(t, cache.IsMiss(err))
}

func TestPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	counters := cache.NewCache(store, cache.WithPrefix("missing:"))
	meta := cache.NewCache(store, cache.WithPrefix("meta:"))

	require.NoError(t, cache.Set(ctx, counters, "chestObject@aa", 60, 0))
	require.NoError(t, cache.Set(ctx, counters, "chestObject@bb", 3, 0))
	require.NoError(t, cache.Set(ctx, meta, "record:chestObject@aa", "body", 0))

	ok, err := store.Exists(ctx, "missing:chestObject@aa")
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := counters.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chestObject@aa", "chestObject@bb"}, keys)

	n, err := counters.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := meta.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"record:chestObject@aa"}, left)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t), cache.WithPrefix("missing:"))

	require.NoError(t, cache.Set(ctx, c, "id", 1, 0))
	require.NoError(t, c.Delete(ctx, "id"))

	_, err := cache.Get[int](ctx, c, "id")
	assert.True(t, cache.IsMiss(err))
}

func TestSet_TTL(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t))

	require.NoError(t, cache.Set(ctx, c, "short", []string{"a", "b"}, 20*time.Millisecond))

	got, err := cache.Get[[]string](ctx, c, "short")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	assert.Eventually(t, func() bool {
		_, err := cache.Get[[]string](ctx, c, "short")
		return cache.IsMiss(err)
	}, time.Second, 10*time.Millisecond)
}

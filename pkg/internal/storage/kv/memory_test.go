package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/storage/kv"
)

func TestMemoryKV_NotFound(t *testing.T) {
	store, err := kv.NewKVStore(context.Background(), kv.KVTypeMemory, nil)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing:abc")
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)
}

func TestMemoryKV_TTLExpires(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewKVStore(ctx, kv.KVTypeMemory, nil)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Second))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	time.Sleep(1100 * time.Millisecond)

	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, kv.ErrKeyNotFound)

	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKV_ExpiredKeysDroppedFromListing(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewKVStore(ctx, kv.KVTypeMemory, nil)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "missing:old", []byte("59"), 50*time.Millisecond))
	require.NoError(t, store.Set(ctx, "missing:live", []byte("60"), 0))

	time.Sleep(100 * time.Millisecond)

	keys, err := store.Keys(ctx, "missing:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"missing:live"}, keys)

	require.NoError(t, store.Set(ctx, "missing:old", []byte("60"), time.Minute))

	got, err := store.Get(ctx, "missing:old")
	require.NoError(t, err)
	assert.Equal(t, []byte("60"), got)
}

func TestMemoryKV_KeysGlob(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewKVStore(ctx, kv.KVTypeMemory, nil)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "missing:a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "missing:b", []byte("2"), 0))
	require.NoError(t, store.Set(ctx, "meta:a", []byte("3"), 0))

	keys, err := store.Keys(ctx, "missing:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"missing:a", "missing:b"}, keys)

	all, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNewKVClientWithConfig_Memory(t *testing.T) {
	cfg := &configs.KVConfig{Type: configs.KVTypeMemory}

	client, err := kv.NewKVClientWithConfig(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())
}

func TestNewKVStore_Unsupported(t *testing.T) {
	_, err := kv.NewKVStore(context.Background(), kv.KVType("etcd"), nil)
	assert.Error(t, err)
}

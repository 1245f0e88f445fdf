package kv

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryKV 进程内 KV，单节点部署和测试使用.
type MemoryKV struct {
	data sync.Map // string -> *memEntry
}

// memEntry 以指针存放，过期删除时按指针比较，不会误删并发写入的新值.
type memEntry struct {
	raw []byte // 带 ttl 包装
}

// NewMemoryKV 创建内存 KV，不需要配置.
func NewMemoryKV(context.Context, any) (KVStore, error) {
	return &MemoryKV{}, nil
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data.Load(key)
	if !ok {
		return nil, notFound(key)
	}

	entry := v.(*memEntry)

	val, live, err := unwrapTTL(entry.raw, time.Now())
	if err != nil {
		return nil, err
	}

	if !live {
		m.data.CompareAndDelete(key, entry)
		return nil, notFound(key)
	}

	return bytes.Clone(val), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	wrapped, err := wrapTTL(bytes.Clone(value), ttl)
	if err != nil {
		return err
	}

	m.data.Store(key, &memEntry{raw: wrapped})

	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.data.Delete(key)
	return nil
}

func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)

	return err == nil, nil
}

func (m *MemoryKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string

	m.data.Range(func(k, _ any) bool {
		key := k.(string)
		if matchKey(pattern, key) {
			if ok, _ := m.Exists(ctx, key); ok {
				keys = append(keys, key)
			}
		}

		return true
	})

	return keys, nil
}

func (m *MemoryKV) Close() error { return nil }

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}

// Package cache 在 KV 存储之上提供带键前缀的类型化读写.
//
// 对象存储用两个实例：协商计数（前缀 missing:）和记录响应缓存（前缀 meta:）.
//
//	counters := cache.NewCache(store, cache.WithPrefix("missing:"))
//	_ = cache.Set(ctx, counters, objectID, 60, time.Minute)
//	left, err := cache.Get[int](ctx, counters, objectID)
//	if cache.IsMiss(err) {
//		// 新一轮协商
//	}
//
// 值以 sonic 编码为 JSON，过期由底层驱动负责.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/chest/pkg/internal/storage/kv"
)

// Cache 同一前缀下的一组键.
type Cache struct {
	store  kv.KVStore
	prefix string
}

// Option 构造选项.
type Option func(*Cache)

// WithPrefix 所有键自动加上 prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// NewCache 包装 store.
func NewCache(store kv.KVStore, opts ...Option) *Cache {
	c := &Cache{store: store}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// IsMiss 键不存在或已过期.
func IsMiss(err error) bool {
	return errors.Is(err, kv.ErrKeyNotFound)
}

// Get 读取并解码，未命中时错误满足 IsMiss.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var v T

	data, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		return v, err
	}

	if err := sonic.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s%s: %w", c.prefix, key, err)
	}

	return v, nil
}

// Set 编码后写入，ttl 为 0 表示不过期.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s%s: %w", c.prefix, key, err)
	}

	return c.store.Set(ctx, c.prefix+key, data, ttl)
}

// Delete 删除单个键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.prefix+key)
}

// Keys 返回当前前缀下的键，已去掉前缀.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.store.Keys(ctx, c.prefix+"*")
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if rest, ok := strings.CutPrefix(k, c.prefix); ok {
			out = append(out, rest)
		}
	}

	return out, nil
}

// Clear 删除当前前缀下的全部键，返回删除的数量.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return 0, err
	}

	n := 0

	for _, k := range keys {
		if err := c.Delete(ctx, k); err != nil && !IsMiss(err) {
			return n, err
		}

		n++
	}

	return n, nil
}

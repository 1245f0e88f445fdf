package kv

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/yeisme/chest/pkg/configs"
)

// GroupcacheKV 本地写入、经 groupcache 组对等读取.
// 本地 map 始终优先，groupcache 只在本节点没有该键时向对等节点取值；
// 组内缓存的值不可失效，因此对等读到的计数可能滞后.
type GroupcacheKV struct {
	group    *groupcache.Group
	pool     *groupcache.HTTPPool
	basePath string

	mu   sync.RWMutex
	data map[string][]byte // 可能带 ttl 包装
}

// NewGroupcacheKV 创建组，配置了 Peers 时注册 HTTP 对等池.
func NewGroupcacheKV(_ context.Context, config any) (KVStore, error) {
	cfg, ok := config.(*configs.GroupcacheKVConfig)
	if !ok {
		return nil, errors.New("invalid Groupcache config")
	}

	g := &GroupcacheKV{data: make(map[string][]byte)}

	group := groupcache.GetGroup(cfg.Name)
	if group == nil {
		group = groupcache.NewGroup(cfg.Name, cfg.CacheBytes, groupcache.GetterFunc(g.load))
	}

	g.group = group

	if len(cfg.Peers) > 0 {
		g.basePath = cmp.Or(cfg.BasePath, "/_groupcache/")
		g.pool = groupcache.NewHTTPPoolOpts(cfg.Self, &groupcache.HTTPPoolOptions{BasePath: g.basePath})
		g.pool.Set(cfg.Peers...)
	}

	return g, nil
}

// local 读取本地未过期的值.
func (g *GroupcacheKV) local(key string) ([]byte, bool) {
	g.mu.RLock()
	raw, ok := g.data[key]
	g.mu.RUnlock()

	if !ok {
		return nil, false
	}

	val, live, err := unwrapTTL(raw, time.Now())
	if err != nil || !live {
		g.mu.Lock()
		delete(g.data, key)
		g.mu.Unlock()

		return nil, false
	}

	return val, true
}

// load 作为 groupcache 的 Getter，对等节点向本节点取值时调用.
func (g *GroupcacheKV) load(_ context.Context, key string, dest groupcache.Sink) error {
	val, ok := g.local(key)
	if !ok {
		return notFound(key)
	}

	return dest.SetBytes(val)
}

func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	if val, ok := g.local(key); ok {
		return bytes.Clone(val), nil
	}

	if g.pool == nil {
		return nil, notFound(key)
	}

	var data []byte
	if err := g.group.Get(ctx, key, groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return nil, notFound(key)
	}

	return data, nil
}

func (g *GroupcacheKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	wrapped, err := wrapTTL(bytes.Clone(value), ttl)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.data[key] = wrapped
	g.mu.Unlock()

	return nil
}

func (g *GroupcacheKV) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.data, key)
	g.mu.Unlock()

	return nil
}

func (g *GroupcacheKV) Exists(_ context.Context, key string) (bool, error) {
	_, ok := g.local(key)

	return ok, nil
}

// Keys 只列出本节点的键.
func (g *GroupcacheKV) Keys(_ context.Context, pattern string) ([]string, error) {
	g.mu.RLock()
	candidates := make([]string, 0, len(g.data))

	for key := range g.data {
		if matchKey(pattern, key) {
			candidates = append(candidates, key)
		}
	}
	g.mu.RUnlock()

	keys := candidates[:0]

	for _, key := range candidates {
		if _, ok := g.local(key); ok {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func (g *GroupcacheKV) Close() error { return nil }

func init() {
	RegisterKVFactory(KVTypeGroupcache, NewGroupcacheKV)
}

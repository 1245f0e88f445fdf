// Package service 实现对象存储的编排层：提交、读取、回收、别名与缺失对象协商.
// 不处理 HTTP 细节，依赖通过构造参数显式传入.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"

	"github.com/yeisme/chest/pkg/cache"
	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/lock"
	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/model"
	nlog "github.com/yeisme/chest/pkg/log"
)

var (
	// ErrNoRemote 客户端角色没有配置副本地址.
	ErrNoRemote = errors.New("no replica configured")
	// ErrNamespaceNotAllowed 命名空间不在允许列表中.
	ErrNamespaceNotAllowed = errors.New("namespace not allowed")
	// ErrInvalidVectors 向量索引名为空或包含非有限值.
	ErrInvalidVectors = errors.New("invalid vectors")
)

// Remote 客户端访问副本的能力.
type Remote interface {
	// Fetch 读取副本上对象的原始存储字节.
	Fetch(ctx context.Context, objectID string) (io.ReadCloser, error)
	// Record 读取副本上的对象记录.
	Record(ctx context.Context, objectID string) (*model.ObjectRecord, error)
	// Supply 把本地原始字节回传给副本，rec 可为空.
	Supply(ctx context.Context, objectID string, r io.Reader, rec *model.ObjectRecord) error
}

// Chest 对象存储编排服务.
type Chest struct {
	backend  backend.Backend
	meta     meta.Store
	pub      message.Publisher
	counters *cache.Cache
	remote   Remote
	cfg      configs.ChestConfig
	events   *configs.EventsConfig

	related *lock.Keyed // 按 RelatedObjectID 串行化提交
	names   *lock.Keyed // 按逻辑名称串行化代数分配
	flight  singleflight.Group
	role    atomic.Value

	log zerolog.Logger
}

// Option Chest 构造选项.
type Option func(*Chest)

// WithPublisher 设置事件发布者.
func WithPublisher(pub message.Publisher) Option {
	return func(c *Chest) { c.pub = pub }
}

// CounterPrefix 协商计数器在 KV 中的键前缀.
const CounterPrefix = "missing:"

// WithCounters 设置协商计数器使用的缓存，通常以 CounterPrefix 为前缀.
func WithCounters(counters *cache.Cache) Option {
	return func(c *Chest) { c.counters = counters }
}

// WithEvents 按主题开关通知类事件，未设置时全部发布.
func WithEvents(events configs.EventsConfig) Option {
	return func(c *Chest) { c.events = &events }
}

// WithRemote 设置访问副本的客户端.
func WithRemote(r Remote) Option {
	return func(c *Chest) { c.remote = r }
}

// New 创建 Chest，角色取自 cfg.Role.
func New(be backend.Backend, store meta.Store, cfg configs.ChestConfig, opts ...Option) *Chest {
	c := &Chest{
		backend: be,
		meta:    store,
		cfg:     cfg,
		related: lock.NewKeyed(),
		names:   lock.NewKeyed(),
		log:     nlog.Component("chest"),
	}

	for _, opt := range opts {
		opt(c)
	}

	role := cfg.Role
	if role == "" {
		role = configs.RoleReplica
	}

	c.role.Store(role)

	return c
}

// Backend 底层对象存储.
func (c *Chest) Backend() backend.Backend { return c.backend }

// Meta 元数据存储.
func (c *Chest) Meta() meta.Store { return c.meta }

// Config 构造时的配置.
func (c *Chest) Config() configs.ChestConfig { return c.cfg }

// Remote 访问副本的客户端，可能为空.
func (c *Chest) Remote() Remote { return c.remote }

// Role 当前角色.
func (c *Chest) Role() configs.Role {
	r, _ := c.role.Load().(configs.Role)

	return r
}

// SetRole 切换角色，只更新编排层的行为，容量与周期任务由协调器负责.
func (c *Chest) SetRole(role configs.Role) {
	c.role.Store(role)
}

// SetCapacity 调整后端容量.
func (c *Chest) SetCapacity(maxSize int64) {
	c.backend.SetCapacity(maxSize)
}

// Ready 后端是否就绪.
func (c *Chest) Ready() bool {
	return c.backend != nil && c.backend.Ready()
}

func (c *Chest) ensureReady() error {
	if !c.Ready() {
		return backend.ErrNotInitialized
	}

	return nil
}

// resolveID 把别名 id 解析为对象 id，对象 id 原样返回，同时给出哈希.
func (c *Chest) resolveID(ctx context.Context, id string) (objectID, hash string, err error) {
	objectID = id

	if model.IsAliasID(id) {
		alias, err := c.meta.GetAlias(ctx, id)
		if err != nil {
			return "", "", c.notFound(err, id)
		}

		objectID = alias.ObjectID
	}

	hash, err = model.ParseObjectID(objectID)
	if err != nil {
		return "", "", err
	}

	return objectID, hash, nil
}

// notFound 把元数据层的不存在转换为 backend.ErrNotFound.
func (c *Chest) notFound(err error, id string) error {
	if errors.Is(err, meta.ErrNotFound) {
		return fmt.Errorf("%w: %s", backend.ErrNotFound, id)
	}

	return err
}

// Record 读取对象记录，支持别名 id.
func (c *Chest) Record(ctx context.Context, id string) (*model.ObjectRecord, error) {
	objectID, _, err := c.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	rec, err := c.meta.GetObject(ctx, objectID)
	if err != nil {
		return nil, c.notFound(err, objectID)
	}

	return rec, nil
}

// SetMetadata 设置对象的描述性元数据.
func (c *Chest) SetMetadata(ctx context.Context, id string, md model.ObjectMetadata) (*model.ObjectRecord, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}

	rec, err := c.Record(ctx, id)
	if err != nil {
		return nil, err
	}

	rec.Metadata = datatypes.NewJSONType(md)

	if err := c.meta.SaveObject(ctx, rec); err != nil {
		return nil, fmt.Errorf("save metadata of %s: %w", rec.ID, err)
	}

	return rec, nil
}

// UpdateVectors 用 vectors 整体替换对象的嵌入向量，传入空映射即清空.
func (c *Chest) UpdateVectors(ctx context.Context, id string, vectors model.Vectors) (*model.ObjectRecord, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}

	for name, vec := range vectors {
		if name == "" {
			return nil, fmt.Errorf("%w: empty index name", ErrInvalidVectors)
		}

		for i, x := range vec {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: %s[%d] is not finite", ErrInvalidVectors, name, i)
			}
		}
	}

	rec, err := c.Record(ctx, id)
	if err != nil {
		return nil, err
	}

	rec.Vectors = datatypes.NewJSONType(vectors)

	if err := c.meta.SaveObject(ctx, rec); err != nil {
		return nil, fmt.Errorf("save vectors of %s: %w", rec.ID, err)
	}

	return rec, nil
}

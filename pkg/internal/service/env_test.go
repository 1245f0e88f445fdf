package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/chest/pkg/cache"
	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/internal/storage/kv"
	"github.com/yeisme/chest/pkg/internal/storage/mq"
	"github.com/yeisme/chest/pkg/queue"
)

type env struct {
	chest *service.Chest
	be    *backend.Store
	store *meta.GormStore
	ps    *gochannel.GoChannel
	root  string
}

type envOption func(*configs.ChestConfig, *[]service.Option)

func withRole(role configs.Role) envOption {
	return func(cfg *configs.ChestConfig, _ *[]service.Option) { cfg.Role = role }
}

func withRemote(r service.Remote) envOption {
	return func(_ *configs.ChestConfig, opts *[]service.Option) {
		*opts = append(*opts, service.WithRemote(r))
	}
}

func withNamespaces(ns ...string) envOption {
	return func(cfg *configs.ChestConfig, _ *[]service.Option) { cfg.Namespaces = ns }
}

func withMissing(attempts int, delay time.Duration) envOption {
	return func(cfg *configs.ChestConfig, _ *[]service.Option) {
		cfg.Missing.Attempts, cfg.Missing.Delay = attempts, delay
	}
}

func withEvents(events configs.EventsConfig) envOption {
	return func(_ *configs.ChestConfig, opts *[]service.Option) {
		*opts = append(*opts, service.WithEvents(events))
	}
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	ctx := context.Background()
	root := t.TempDir()

	be, err := backend.New(ctx, backend.Options{Driver: "fs", Root: root, Compress: backend.CompressGzip})
	require.NoError(t, err)
	t.Cleanup(func() { _ = be.Close() })

	dsn := "file:" + strings.NewReplacer("/", "_").Replace(t.Name()) + "?mode=memory&cache=shared"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := meta.NewGormStore(db)
	require.NoError(t, store.AutoMigrate(ctx))

	kvStore, err := kv.NewMemoryKV(ctx, nil)
	require.NoError(t, err)

	ps := mq.NewGoChannel(64, nil)
	t.Cleanup(func() { _ = ps.Close() })

	cfg := configs.Defaults().Chest
	cfg.FS.Location = root
	cfg.Missing = configs.MissingConfig{Attempts: 3, Delay: 5 * time.Millisecond, WarnEvery: 2}

	svcOpts := []service.Option{
		service.WithPublisher(ps),
		service.WithCounters(cache.NewCache(kvStore, cache.WithPrefix(service.CounterPrefix))),
	}

	for _, o := range opts {
		o(&cfg, &svcOpts)
	}

	return &env{
		chest: service.New(be, store, cfg, svcOpts...),
		be:    be,
		store: store,
		ps:    ps,
		root:  root,
	}
}

// missingEvents 订阅缺失广播并对每条消息调用 fn.
func (e *env) missingEvents(t *testing.T, fn func(queue.MissingFilePayload)) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	msgs, err := e.ps.Subscribe(ctx, queue.TopicMissingFileNeeded)
	require.NoError(t, err)

	go func() {
		for msg := range msgs {
			m, err := queue.ParseMissingFileNeeded(msg)
			msg.Ack()

			if err == nil {
				fn(m.Payload)
			}
		}
	}()
}

// counter 并发安全的事件计数.
type counter struct {
	mu  sync.Mutex
	ids []string
}

func (c *counter) add(id string) {
	c.mu.Lock()
	c.ids = append(c.ids, id)
	c.mu.Unlock()
}

func (c *counter) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.ids)
}

func hashOf(data []byte) string {
	h := sha256.Sum256(data)

	return hex.EncodeToString(h[:])
}

package replica_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
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
	"github.com/yeisme/chest/pkg/internal/model"
	"github.com/yeisme/chest/pkg/internal/replica"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/internal/storage/kv"
	"github.com/yeisme/chest/pkg/internal/storage/mq"
	"github.com/yeisme/chest/pkg/scheduler"
)

// node 一个完整的对象存储节点.
type node struct {
	chest *service.Chest
	be    *backend.Store
	store *meta.GormStore
	db    *gorm.DB
	coord *replica.Coordinator
	sched *scheduler.Scheduler
}

type nodeOptions struct {
	role   configs.Role
	remote service.Remote
	tune   func(*configs.ChestConfig)
}

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()

	ps := mq.NewGoChannel(64, nil)
	t.Cleanup(func() { _ = ps.Close() })

	return ps
}

func newNode(t *testing.T, name string, ps *gochannel.GoChannel, o nodeOptions) *node {
	t.Helper()

	ctx := context.Background()
	root := t.TempDir()

	be, err := backend.New(ctx, backend.Options{Driver: "fs", Root: root})
	require.NoError(t, err)
	t.Cleanup(func() { _ = be.Close() })

	dsn := "file:" + strings.NewReplacer("/", "_").Replace(t.Name()) + "_" + name + "?mode=memory&cache=shared"

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

	cfg := configs.Defaults().Chest
	cfg.FS.Location = root
	cfg.Role = o.role
	cfg.Missing = configs.MissingConfig{Attempts: 200, Delay: 5 * time.Millisecond, WarnEvery: 50}

	if o.tune != nil {
		o.tune(&cfg)
	}

	opts := []service.Option{
		service.WithPublisher(ps),
		service.WithCounters(cache.NewCache(kvStore, cache.WithPrefix(service.CounterPrefix))),
	}
	if o.remote != nil {
		opts = append(opts, service.WithRemote(o.remote))
	}

	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	chest := service.New(be, store, cfg, opts...)
	coord := replica.New(chest, ps, sched)
	t.Cleanup(func() { _ = coord.Stop() })

	return &node{chest: chest, be: be, store: store, db: db, coord: coord, sched: sched}
}

func (n *node) supply(t *testing.T, data string, name string) string {
	t.Helper()

	id, err := n.chest.Supply(context.Background(), bytes.NewBufferString(data), service.SupplyOptions{FileName: name})
	require.NoError(t, err)

	return id
}

// forget 删除本地字节，只保留记录.
func (n *node) forget(t *testing.T, id string) {
	t.Helper()

	hash, err := model.ParseObjectID(id)
	require.NoError(t, err)
	require.NoError(t, n.be.Delete(context.Background(), hash))
}

func (n *node) has(t *testing.T, id string) bool {
	t.Helper()

	hash, err := model.ParseObjectID(id)
	require.NoError(t, err)

	ok, err := n.be.Exists(context.Background(), hash)
	require.NoError(t, err)

	return ok
}

// loopback 直接调用另一个节点的 Remote 实现.
type loopback struct {
	server *service.Chest
}

func (l loopback) Fetch(ctx context.Context, objectID string) (io.ReadCloser, error) {
	hash, err := model.ParseObjectID(objectID)
	if err != nil {
		return nil, err
	}

	return l.server.Backend().Open(ctx, hash, nil, nil)
}

func (l loopback) Record(ctx context.Context, objectID string) (*model.ObjectRecord, error) {
	return l.server.Record(ctx, objectID)
}

func (l loopback) Supply(ctx context.Context, objectID string, r io.Reader, rec *model.ObjectRecord) error {
	opts := service.SupplyOptions{RelatedObjectID: objectID, Raw: true}
	if rec != nil {
		opts.FileName, opts.Extension, opts.Encryption = rec.Name, rec.Ext, rec.Encryption
	}

	_, err := l.server.Supply(ctx, r, opts)

	return err
}

// recorder 记录回传调用，err 非空时所有调用失败.
type recorder struct {
	mu       sync.Mutex
	err      error
	supplied map[string][]byte
	records  map[string]*model.ObjectRecord
}

func (r *recorder) Fetch(context.Context, string) (io.ReadCloser, error) {
	if r.err != nil {
		return nil, r.err
	}

	return nil, backend.ErrNotFound
}

func (r *recorder) Record(context.Context, string) (*model.ObjectRecord, error) {
	return nil, backend.ErrNotFound
}

func (r *recorder) Supply(_ context.Context, objectID string, rd io.Reader, rec *model.ObjectRecord) error {
	if r.err != nil {
		return r.err
	}

	data, err := io.ReadAll(rd)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.supplied == nil {
		r.supplied = map[string][]byte{}
		r.records = map[string]*model.ObjectRecord{}
	}

	r.supplied[objectID] = data
	r.records[objectID] = rec

	return nil
}

func (r *recorder) get(id string) ([]byte, *model.ObjectRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.supplied[id], r.records[id]
}

func hashOf(data string) string {
	h := sha256.Sum256([]byte(data))

	return hex.EncodeToString(h[:])
}

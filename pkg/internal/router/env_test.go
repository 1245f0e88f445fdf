package router_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/chest/pkg/cache"
	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/replica"
	"github.com/yeisme/chest/pkg/internal/router"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/internal/storage/kv"
	"github.com/yeisme/chest/pkg/internal/storage/mq"
	"github.com/yeisme/chest/pkg/middleware"
	"github.com/yeisme/chest/pkg/scheduler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	chest  *service.Chest
	coord  *replica.Coordinator
	be     *backend.Store
	engine *gin.Engine
}

func newServer(t *testing.T, tune ...func(*configs.ChestConfig)) *server {
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
	cfg.Missing = configs.MissingConfig{Attempts: 2, Delay: time.Millisecond, WarnEvery: 1}

	for _, fn := range tune {
		fn(&cfg)
	}

	chest := service.New(be, store, cfg,
		service.WithPublisher(ps),
		service.WithCounters(cache.NewCache(kvStore, cache.WithPrefix(service.CounterPrefix))),
	)

	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	coord := replica.New(chest, ps, sched)
	t.Cleanup(func() { _ = coord.Stop() })

	engine := gin.New()
	engine.Use(middleware.SchedulerMiddleware(sched), middleware.ChestMiddleware(chest, coord))

	api := engine.Group("/api/v1")
	router.RegisterChestRoutes(api, nil)
	router.RegisterReplicaRoutes(api)
	router.RegisterHealthCheckRoute(api)

	return &server{chest: chest, coord: coord, be: be, engine: engine}
}

func (s *server) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	return w
}

func (s *server) request(method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return s.do(req)
}

// upload 以 multipart 表单上传，fields 为额外的表单字段.
func (s *server) upload(t *testing.T, name, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)

	_, err = io.WriteString(fw, content)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}

	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chest/objects", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return s.do(req)
}

func hashOf(data []byte) string {
	h := sha256.Sum256(data)

	return hex.EncodeToString(h[:])
}

func keyPair(t *testing.T) (pubPEM, privPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
		pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

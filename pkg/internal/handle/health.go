package handle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	ctxPkg "github.com/yeisme/chest/pkg/context"
)

const (
	probeTimeout = 2 * time.Second
	probeKey     = "health:probe"
)

var (
	errNotInitialized  = errors.New("client not initialized")
	errBackendNotReady = errors.New("object store not initialized")
)

// probe 在超时内执行一次组件探测并写出统一格式的结果.
func probe(c *gin.Context, component string, check func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	if err := check(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": component, "status": "unhealthy", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": component, "status": "ok"})
}

// checks 各组件的探测函数，HealthAll 与单项接口共用.
var checks = map[string]func(ctx context.Context) error{
	"db":      checkDB,
	"s3":      checkS3,
	"mq":      checkMQ,
	"kv":      checkKV,
	"backend": checkBackend,
}

// HealthAll 并发探测全部已初始化的组件，任一失败时返回 503.
// 未启用的组件（例如 fs 后端下的 s3）记为 skipped.
func HealthAll(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		g       errgroup.Group
		results = make(gin.H, len(checks))
		healthy = true
	)

	for name, check := range checks {
		g.Go(func() error {
			status := "ok"
			if err := check(ctx); errors.Is(err, errNotInitialized) {
				status = "skipped"
			} else if err != nil {
				status = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()

			results[name] = status
			if status != "ok" && status != "skipped" {
				healthy = false
			}

			return nil
		})
	}

	_ = g.Wait()

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{"healthy": healthy, "components": results})
}

// HealthDB 元数据库健康检查.
func HealthDB(c *gin.Context) { probe(c, "db", checkDB) }

func checkDB(ctx context.Context) error {
	dbc := ctxPkg.GetDBClient(ctx)
	if dbc == nil || dbc.DB == nil {
		return errNotInitialized
	}

	sqlDB, err := dbc.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

// HealthS3 S3 驱动健康检查，仅当后端驱动为 s3 时才会初始化客户端.
func HealthS3(c *gin.Context) { probe(c, "s3", checkS3) }

func checkS3(ctx context.Context) error {
	s3c := ctxPkg.GetS3Client(ctx)
	if s3c == nil || s3c.Client == nil {
		return errNotInitialized
	}

	ok, err := s3c.BucketExists(ctx, s3c.Bucket)
	if err == nil && !ok {
		err = fmt.Errorf("bucket %s does not exist", s3c.Bucket)
	}

	return err
}

// HealthMQ 事件总线健康检查，发布一条无人订阅的探测消息.
func HealthMQ(c *gin.Context) { probe(c, "mq", checkMQ) }

func checkMQ(ctx context.Context) error {
	mqc := ctxPkg.GetMQClient(ctx)
	if mqc == nil {
		return errNotInitialized
	}

	return mqc.Ping(ctx)
}

// HealthKV 协商计数存储健康检查，写入并删除一个短期探测键.
func HealthKV(c *gin.Context) { probe(c, "kv", checkKV) }

func checkKV(ctx context.Context) error {
	kvc := ctxPkg.GetKVClient(ctx)
	if kvc == nil || kvc.KVStore == nil {
		return errNotInitialized
	}

	if err := kvc.Set(ctx, probeKey, []byte("1"), probeTimeout); err != nil {
		return err
	}

	return kvc.Delete(ctx, probeKey)
}

// HealthBackend 对象存储后端健康检查，未完成初始化时返回 503.
func HealthBackend(c *gin.Context) {
	chest := ctxPkg.GetChest(c.Request.Context())
	if chest == nil || !chest.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"component": "backend", "status": "unhealthy", "error": "object store not initialized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"component": "backend", "status": "ok", "role": chest.Role(), "stats": chest.Backend().Stats()})
}

func checkBackend(ctx context.Context) error {
	chest := ctxPkg.GetChest(ctx)
	if chest == nil || !chest.Ready() {
		return errBackendNotReady
	}

	return nil
}

// Package app 提供应用程序的初始化和配置功能.
package app

import (
	contextPkg "context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/chest/pkg/cache"
	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/remote"
	"github.com/yeisme/chest/pkg/internal/replica"
	"github.com/yeisme/chest/pkg/internal/router"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/internal/storage"
	"github.com/yeisme/chest/pkg/log"
	"github.com/yeisme/chest/pkg/metrics"
	"github.com/yeisme/chest/pkg/middleware"
	"github.com/yeisme/chest/pkg/scheduler"
	"github.com/yeisme/chest/pkg/tracing"
)

const (
	// 记录响应缓存的键前缀
	metaCachePrefix = "meta:"

	shutdownTimeout = 10 * time.Second
)

// App 组装好的对象存储节点.
type App struct {
	Engine *gin.Engine

	config  *configs.AppConfig
	manager *storage.Manager
	backend *backend.Store
	chest   *service.Chest
	coord   *replica.Coordinator
	sched   *scheduler.Scheduler
	server  *http.Server
}

// NewApp 加载配置并初始化全部依赖，失败时释放已创建的资源.
func NewApp(ctx contextPkg.Context, configPath string) (_ *App, err error) {
	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	config := configs.GetConfig()
	log.Init()

	// 初始化追踪
	if err := tracing.InitTracer(config.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	a := &App{config: config}

	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	if a.manager, err = storage.Init(ctx, config); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	store := meta.NewGormStore(a.manager.DB.DB)
	if err = store.AutoMigrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate metadata: %w", err)
	}

	if a.backend, err = backend.New(ctx, backend.OptionsFromConfig(&config.Chest, a.manager.S3)); err != nil {
		return nil, fmt.Errorf("init backend: %w", err)
	}

	opts := []service.Option{
		service.WithPublisher(a.manager.MQ.Publisher()),
		service.WithCounters(cache.NewCache(a.manager.KV, cache.WithPrefix(service.CounterPrefix))),
		service.WithEvents(config.Events),
	}

	if config.Chest.ServerURL != "" {
		rc, rerr := remote.New(config.Chest.ServerURL, config.Chest.Remote, config.CircuitBreaker)
		if rerr != nil {
			return nil, fmt.Errorf("init remote: %w", rerr)
		}

		opts = append(opts, service.WithRemote(rc))
	}

	a.chest = service.New(a.backend, store, config.Chest, opts...)

	if a.sched, err = scheduler.NewScheduler(); err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	a.coord = replica.New(a.chest, a.manager.MQ.Subscriber(), a.sched)

	a.Engine = a.newEngine()

	return a, nil
}

// newEngine 组装中间件和路由.
func (a *App) newEngine() *gin.Engine {
	if !a.config.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine := gin.New()
	engine.MaxMultipartMemory = a.config.Server.MultipartMem

	engine.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(a.config.Server),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.RateLimitMiddleware(a.config.RateLimit),
		middleware.CircuitBreakerMiddleware(a.config.CircuitBreaker),
		middleware.BodyLimitMiddleware(a.config.Server.MaxUploadSize),
		// 对象字节已按配置压缩或加密，不再重复压缩
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{
			`^/api/v1/chest/objects/[^/]+(/open|/raw)?$`,
		})),
		middleware.StorageMiddleware(a.manager),
		middleware.SchedulerMiddleware(a.sched),
		middleware.ChestMiddleware(a.chest, a.coord),
	)

	api := engine.Group("/api/v1")
	router.RegisterChestRoutes(api, cache.NewCache(a.manager.KV, cache.WithPrefix(metaCachePrefix)))
	router.RegisterReplicaRoutes(api)
	router.RegisterHealthCheckRoute(api)
	router.RegisterSwaggerRoute(engine, a.config.Server)

	// groupcache 对等读取走同一个 HTTP 端口
	if base, h, ok := a.manager.KV.PeerHandler(); ok {
		engine.Any(strings.TrimSuffix(base, "/")+"/*key", gin.WrapH(h))
	}

	if a.config.Metrics.Enabled {
		_ = metrics.StartMetricsServer(a.config.Metrics, engine)
	}

	return engine
}

// Run 启动调度器与复制协调器并阻塞处理 HTTP 请求，ctx 结束时优雅退出.
func (a *App) Run(ctx contextPkg.Context) error {
	l := log.Logger()

	a.sched.Start()

	if err := a.coord.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}

	a.server = &http.Server{
		Addr:              a.config.Server.Addr(),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.GetTimeoutDuration(),
	}

	errCh := make(chan error, 1)

	go func() {
		l.Info().Str("addr", a.server.Addr).Str("role", string(a.chest.Role())).Msg("chest server listening")

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		_ = a.Shutdown(contextPkg.Background())

		return err
	case <-ctx.Done():
		shutdownCtx, cancel := contextPkg.WithTimeout(contextPkg.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return a.Shutdown(shutdownCtx)
	}
}

// Shutdown 停止接收请求并释放全部资源.
func (a *App) Shutdown(ctx contextPkg.Context) error {
	var errs []error

	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}

	errs = append(errs, a.close(), tracing.ShutdownTracer(ctx))

	return errors.Join(errs...)
}

// close 按依赖的逆序关闭组件.
func (a *App) close() error {
	var errs []error

	if a.coord != nil {
		errs = append(errs, a.coord.Stop())
	}

	if a.sched != nil {
		errs = append(errs, a.sched.Stop())
	}

	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}

	if a.manager != nil {
		errs = append(errs, a.manager.Close())
	}

	return errors.Join(errs...)
}

// Chest 对象存储服务.
func (a *App) Chest() *service.Chest { return a.chest }

// Coordinator 复制协调器.
func (a *App) Coordinator() *replica.Coordinator { return a.coord }

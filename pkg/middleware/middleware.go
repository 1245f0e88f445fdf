// Package middleware 提供 gin 中间件：日志、追踪、指标、限流、熔断、响应缓存以及依赖注入.
package middleware

import (
	stdctx "context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/chest/pkg/context"
	"github.com/yeisme/chest/pkg/internal/replica"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/internal/storage"
	"github.com/yeisme/chest/pkg/scheduler"
)

type schedulerKey struct{}

// ChestMiddleware 将对象存储服务与复制协调器注入到请求 context 中.
func ChestMiddleware(chest *service.Chest, coord *replica.Coordinator) gin.HandlerFunc {
	return inject(func(ctx stdctx.Context) stdctx.Context {
		ctx = context.WithChest(ctx, chest)
		if coord != nil {
			ctx = context.WithCoordinator(ctx, coord)
		}

		return ctx
	})
}

// StorageMiddleware 注入存储管理器，健康检查通过它访问各个客户端.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return inject(func(ctx stdctx.Context) stdctx.Context {
		return context.WithStorageManager(ctx, manager)
	})
}

// SchedulerMiddleware 注入周期任务调度器.
func SchedulerMiddleware(sched *scheduler.Scheduler) gin.HandlerFunc {
	return inject(func(ctx stdctx.Context) stdctx.Context {
		return stdctx.WithValue(ctx, schedulerKey{}, sched)
	})
}

// GetScheduler 取出调度器，未注入时返回 nil.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	if sched, ok := c.Request.Context().Value(schedulerKey{}).(*scheduler.Scheduler); ok {
		return sched
	}

	return nil
}

func inject(wrap func(stdctx.Context) stdctx.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(wrap(c.Request.Context()))
		c.Next()
	}
}

// BodyLimitMiddleware 限制请求体大小，超出时读取返回 *http.MaxBytesError.
func BodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}

		c.Next()
	}
}

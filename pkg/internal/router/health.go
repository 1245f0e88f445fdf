package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/chest/pkg/internal/handle"
)

// RegisterHealthCheckRoute 注册健康检查路由，/health 汇总全部组件.
func RegisterHealthCheckRoute(g *gin.RouterGroup) {
	healthRoutes := g.Group("/health")
	{
		healthRoutes.GET("", handle.HealthAll)
		healthRoutes.GET("/db", handle.HealthDB)
		healthRoutes.GET("/s3", handle.HealthS3)
		healthRoutes.GET("/mq", handle.HealthMQ)
		healthRoutes.GET("/kv", handle.HealthKV)
		healthRoutes.GET("/backend", handle.HealthBackend)
	}
}

package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/chest/pkg/internal/handle"
)

// RegisterReplicaRoutes 注册角色切换、手动扫描与周期任务路由.
func RegisterReplicaRoutes(g *gin.RouterGroup) {
	replicaRoutes := g.Group("/chest/replica")
	{
		replicaRoutes.GET("", handle.ReplicaStatus)
		replicaRoutes.PUT("/role", handle.SetRole)

		replicaRoutes.POST("/collect", handle.RunCollect)
		replicaRoutes.POST("/check-missing", handle.RunCheckMissing)
		replicaRoutes.POST("/orphan-scan", handle.RunOrphanScan)

		replicaRoutes.GET("/jobs", handle.ReplicaJobs)
		replicaRoutes.POST("/jobs/:name/run", handle.RunJob)
	}
}

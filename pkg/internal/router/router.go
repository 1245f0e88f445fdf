// Package router 管理路由配置，将对象存储接口绑定到 gin 路由组.
package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/chest/pkg/cache"
	"github.com/yeisme/chest/pkg/internal/handle"
	"github.com/yeisme/chest/pkg/middleware"
)

// metaCacheTTL 对象记录响应的缓存时间.
const metaCacheTTL = 5 * time.Second

// RegisterChestRoutes 注册对象与别名路由，g 通常为 /api/v1 分组.
// metaCache 非空时缓存对象记录的 GET 响应.
//
//	POST   /chest/objects                      -> SupplyObject
//	GET    /chest/objects/:id                  -> GetObject
//	DELETE /chest/objects/:id                  -> TrashObject
//	GET    /chest/objects/:id/meta             -> GetObjectMeta
//	PUT    /chest/objects/:id/metadata         -> SetObjectMetadata
//	PUT    /chest/objects/:id/vectors          -> UpdateObjectVectors
//	GET    /chest/objects/:id/location         -> GetObjectLocation
//	POST   /chest/objects/:id/open             -> OpenObject
//	POST   /chest/objects/:id/unlink           -> UnlinkObject
//	PUT    /chest/objects/:id/raw              -> SupplyRaw
//	GET    /chest/aliases/:namespace/:name     -> ResolveAlias
//	PUT    /chest/aliases/:namespace/:name     -> SetAlias
//	DELETE /chest/aliases/:id                  -> TrashAlias
func RegisterChestRoutes(g *gin.RouterGroup, metaCache *cache.Cache) {
	chestRoutes := g.Group("/chest")

	objects := chestRoutes.Group("/objects")
	{
		objects.POST("", handle.SupplyObject)

		serve, invalidate := recordCache(metaCache)

		single := objects.Group("/:id")
		{
			single.GET("", handle.GetObject)
			single.DELETE("", invalidate, handle.TrashObject)
			single.GET("/meta", serve, handle.GetObjectMeta)
			single.PUT("/metadata", invalidate, handle.SetObjectMetadata)
			single.PUT("/vectors", invalidate, handle.UpdateObjectVectors)
			single.GET("/location", handle.GetObjectLocation)
			single.POST("/open", handle.OpenObject)
			single.POST("/unlink", invalidate, handle.UnlinkObject)
			// 客户端回传缺失对象
			single.PUT("/raw", invalidate, handle.SupplyRaw)
		}
	}

	aliases := chestRoutes.Group("/aliases")
	{
		aliases.GET("/:namespace/:name", handle.ResolveAlias)
		aliases.PUT("/:namespace/:name", handle.SetAlias)
		aliases.DELETE("/:id", handle.TrashAlias)
	}
}

// recordCache 返回记录缓存的读写中间件，未配置缓存时为直通.
func recordCache(c *cache.Cache) (serve, invalidate gin.HandlerFunc) {
	if c == nil {
		pass := func(c *gin.Context) { c.Next() }
		return pass, pass
	}

	rc := middleware.NewRecordCache(c, metaCacheTTL)

	return rc.Serve(), rc.Invalidate()
}

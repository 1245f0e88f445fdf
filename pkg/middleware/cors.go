package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/chest/pkg/configs"
)

// CORSMiddleware 允许浏览器直接上传与下载对象.
// 客户端回传缺失对象时携带 X-Chest-* 请求头，下载时需要读到文件名与世代号.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = append(config.AllowHeaders, "X-Chest-Name", "X-Chest-Ext", "X-Chest-Encryption")
	config.ExposeHeaders = []string{"Content-Disposition", "X-Chest-Generation", "Retry-After"}
	config.MaxAge = 12 * time.Hour

	if cfg.Debug {
		config.AllowAllOrigins = true
		config.AllowOrigins = nil
	}

	return cors.New(config)
}

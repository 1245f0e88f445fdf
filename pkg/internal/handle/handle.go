// Package handle 提供对象存储 HTTP 接口的请求处理器.
// 处理器从请求 context 中获取服务实例，错误统一经 abortWithError 转换为状态码.
package handle

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	ctxPkg "github.com/yeisme/chest/pkg/context"
	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/remote"
	"github.com/yeisme/chest/pkg/internal/replica"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/log"
)

// statusOf 错误到状态码的映射.
func statusOf(err error) int {
	var (
		verrs    validator.ValidationErrors
		tooLarge *http.MaxBytesError
	)

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case backend.IsNotFound(err):
		return http.StatusNotFound
	case backend.IsIntegrity(err):
		return http.StatusConflict
	case errors.Is(err, backend.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrNamespaceNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, backend.ErrInvalidHash),
		errors.Is(err, backend.ErrUnsupportedCipher),
		errors.Is(err, backend.ErrUnsupportedCompress),
		errors.Is(err, backend.ErrBadCiphertext),
		errors.Is(err, service.ErrInvalidVectors),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, remote.ErrServerUnreachable), errors.Is(err, service.ErrNoRemote):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError 记录日志并写入错误响应.
func abortWithError(c *gin.Context, err error, msg string) {
	status := statusOf(err)

	l := log.Logger()

	ev := l.Warn()
	if status >= http.StatusInternalServerError {
		ev = l.Error()
	}

	ev.Err(err).Str("path", c.Request.URL.Path).Int("status", status).Msg(msg)

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// chestOf 取出对象存储服务，未注入时直接返回 503.
func chestOf(c *gin.Context) (*service.Chest, bool) {
	chest := ctxPkg.GetChest(c.Request.Context())
	if chest == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "chest not initialized"})

		return nil, false
	}

	return chest, true
}

// coordinatorOf 取出复制协调器，未注入时直接返回 503.
func coordinatorOf(c *gin.Context) (*replica.Coordinator, bool) {
	coord := ctxPkg.GetCoordinator(c.Request.Context())
	if coord == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "coordinator not initialized"})

		return nil, false
	}

	return coord, true
}

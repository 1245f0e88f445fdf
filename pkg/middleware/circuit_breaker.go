package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/log"
)

// errHandlerFailed 处理器返回了计入熔断的状态码.
var errHandlerFailed = errors.New("handler failed")

// CircuitBreakerMiddleware 基于 gobreaker 的入口熔断.
// 只有本节点自身的 5xx 计入失败，502 与 504 表示副本或协商超时，不计入.
func CircuitBreakerMiddleware(cfg configs.CircuitBreakerConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	settings := cfg.Settings("chest-http")
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		l := log.Logger()
		l.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
			Msg("circuit breaker state changed")
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	retryAfter := strconv.Itoa(cfg.TimeoutSeconds)

	return func(c *gin.Context) {
		_, err := cb.Execute(func() (any, error) {
			c.Next()

			if countsAsFailure(c.Writer.Status()) {
				return nil, errHandlerFailed
			}

			return nil, nil
		})

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
		}
	}
}

func countsAsFailure(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		return false
	default:
		return status >= http.StatusInternalServerError
	}
}

package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/chest/pkg/configs"
)

const (
	limiterIdleTTL      = 10 * time.Minute
	limiterSweepEvery   = time.Minute
	limiterSweepTrigger = 1024
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiters 按 key 维护独立的令牌桶，闲置超过 limiterIdleTTL 的桶会被回收.
type keyedLimiters struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	visitors  map[string]*visitor
	lastSweep time.Time
}

func (k *keyedLimiters) get(key string, now time.Time) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.visitors) >= limiterSweepTrigger && now.Sub(k.lastSweep) >= limiterSweepEvery {
		for key, v := range k.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(k.visitors, key)
			}
		}

		k.lastSweep = now
	}

	v, ok := k.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(k.rps, k.burst)}
		k.visitors[key] = v
	}

	v.lastSeen = now

	return v.limiter
}

// RateLimitMiddleware 令牌桶限流，Exempt 中的路由模板前缀不受限制.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keyMode := strings.ToLower(strings.TrimSpace(cfg.Key))
	keyOf := func(c *gin.Context) string {
		if h, ok := strings.CutPrefix(keyMode, "header:"); ok {
			if v := c.GetHeader(h); v != "" {
				return v
			}
		}

		return clientIP(c)
	}

	var limiterFor func(c *gin.Context) *rate.Limiter

	if keyMode == "global" || keyMode == "" {
		global := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)
		limiterFor = func(*gin.Context) *rate.Limiter { return global }
	} else {
		keyed := &keyedLimiters{rps: rate.Limit(cfg.RPS), burst: cfg.Burst, visitors: map[string]*visitor{}}
		limiterFor = func(c *gin.Context) *rate.Limiter { return keyed.get(keyOf(c), time.Now()) }
	}

	retryAfter := strconv.Itoa(int(math.Max(1, math.Ceil(1/cfg.RPS))))

	return func(c *gin.Context) {
		if exempt(cfg.Exempt, c.FullPath()) {
			c.Next()
			return
		}

		if !limiterFor(c).Allow() {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})

			return
		}

		c.Next()
	}
}

func exempt(prefixes []string, route string) bool {
	if route == "" {
		return false
	}

	for _, p := range prefixes {
		if strings.HasPrefix(route, p) {
			return true
		}
	}

	return false
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}

	if c.Request.RemoteAddr != "" {
		return c.Request.RemoteAddr
	}

	return "unknown"
}

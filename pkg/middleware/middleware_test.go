package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/chest/pkg/cache"
	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/storage/kv"
	"github.com/yeisme/chest/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	return w
}

func TestRecordCache_ServeAndInvalidate(t *testing.T) {
	store, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)

	rc := middleware.NewRecordCache(cache.NewCache(store, cache.WithPrefix("meta:")), time.Minute)

	generation := 1
	calls := 0

	engine := gin.New()
	engine.GET("/objects/:id/meta", rc.Serve(), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"generation": generation})
	})
	engine.PUT("/objects/:id/metadata", rc.Invalidate(), func(c *gin.Context) {
		generation++
		c.Status(http.StatusOK)
	})

	w := serve(engine, http.MethodGet, "/objects/a/meta")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache"))

	w = serve(engine, http.MethodGet, "/objects/a/meta")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"generation":1}`, w.Body.String())
	assert.Equal(t, 1, calls)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = serve(engine, http.MethodGet, "/objects/a/meta", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	// 其他 id 互不影响
	serve(engine, http.MethodGet, "/objects/b/meta")
	assert.Equal(t, 2, calls)

	serve(engine, http.MethodPut, "/objects/a/metadata")

	w = serve(engine, http.MethodGet, "/objects/a/meta")
	assert.JSONEq(t, `{"generation":2}`, w.Body.String())
	assert.Equal(t, 3, calls)
}

func TestRecordCache_SkipsErrors(t *testing.T) {
	store, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)

	rc := middleware.NewRecordCache(cache.NewCache(store), time.Minute)
	calls := 0

	engine := gin.New()
	engine.GET("/objects/:id/meta", rc.Serve(), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	serve(engine, http.MethodGet, "/objects/x/meta")
	serve(engine, http.MethodGet, "/objects/x/meta")
	assert.Equal(t, 2, calls)
}

func TestRateLimit_ExemptAndRetryAfter(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{
		Enabled: true,
		RPS:     0.5,
		Burst:   1,
		Key:     "ip",
		Exempt:  []string{"/health"},
	}))

	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	engine.GET("/objects/:id", ok)
	engine.GET("/health/db", ok)

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/objects/a").Code)

	w := serve(engine, http.MethodGet, "/objects/b")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	for range 3 {
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health/db").Code)
	}
}

func TestRateLimit_HeaderKey(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{
		Enabled: true,
		RPS:     1,
		Burst:   1,
		Key:     "header:X-Node",
	}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/", "X-Node", "a").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/", "X-Node", "b").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodGet, "/", "X-Node", "a").Code)
}

func breakerConfig() configs.CircuitBreakerConfig {
	return configs.CircuitBreakerConfig{
		Enabled:           true,
		FailureRate:       0.5,
		MinRequests:       2,
		IntervalSeconds:   60,
		TimeoutSeconds:    30,
		MaxRequestsInHalf: 1,
	}
}

func TestCircuitBreaker_OpensOnServerErrors(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.CircuitBreakerMiddleware(breakerConfig()))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	assert.Equal(t, http.StatusInternalServerError, serve(engine, http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(engine, http.MethodGet, "/").Code)

	w := serve(engine, http.MethodGet, "/")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestCircuitBreaker_IgnoresUpstreamFailures(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.CircuitBreakerMiddleware(breakerConfig()))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	for range 5 {
		assert.Equal(t, http.StatusBadGateway, serve(engine, http.MethodGet, "/").Code)
	}
}

func TestCORS_ExposesChestHeaders(t *testing.T) {
	engine := gin.New()
	engine.Use(middleware.CORSMiddleware(configs.ServerConfig{}))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, http.MethodGet, "/", "Origin", "http://peer.test")
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Chest-Generation")
}

package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/chest/pkg/cache"
	"github.com/yeisme/chest/pkg/log"
)

// maxCachedRecord 超过此大小的记录响应不缓存.
const maxCachedRecord = 256 << 10

// RecordCache 以对象 id 为键缓存记录查询的响应，写操作成功后失效.
type RecordCache struct {
	cache *appcache.Cache
	ttl   time.Duration
}

// NewRecordCache 创建记录响应缓存.
func NewRecordCache(c *appcache.Cache, ttl time.Duration) *RecordCache {
	return &RecordCache{cache: c, ttl: ttl}
}

type cachedRecord struct {
	Body        []byte `json:"b"`
	ETag        string `json:"e"`
	ContentType string `json:"c"`
	StoredAt    int64  `json:"t"`
}

func recordKey(id string) string { return "record:" + id }

// Serve 读缓存，未命中时捕获 200 响应写回，支持 If-None-Match.
func (r *RecordCache) Serve() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Cache-Control") == "no-cache" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := recordKey(c.Param("id"))

		if entry, err := appcache.Get[cachedRecord](ctx, r.cache, key); err == nil {
			h := c.Writer.Header()
			h.Set("ETag", entry.ETag)
			h.Set("Age", strconv.FormatInt(int64(time.Since(time.Unix(0, entry.StoredAt)).Seconds()), 10))
			h.Set("X-Cache", "HIT")

			if c.GetHeader("If-None-Match") == entry.ETag {
				c.AbortWithStatus(http.StatusNotModified)
				return
			}

			c.Data(http.StatusOK, entry.ContentType, entry.Body)
			c.Abort()

			return
		}

		bw := &bodyCaptureWriter{ResponseWriter: c.Writer}
		c.Writer = bw
		c.Next()

		if c.Writer.Status() != http.StatusOK || bw.overflow {
			return
		}

		entry := cachedRecord{
			Body:        bw.buf.Bytes(),
			ETag:        `"` + strconv.FormatUint(xxhash.Sum64(bw.buf.Bytes()), 16) + `"`,
			ContentType: c.Writer.Header().Get("Content-Type"),
			StoredAt:    time.Now().UnixNano(),
		}

		if err := appcache.Set(context.WithoutCancel(ctx), r.cache, key, entry, r.ttl); err != nil {
			l := log.Logger()
			l.Debug().Err(err).Str("key", key).Msg("record cache store failed")
		}
	}
}

// Invalidate 在写操作成功后删除对应 id 的缓存.
func (r *RecordCache) Invalidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}

		_ = r.cache.Delete(context.WithoutCancel(c.Request.Context()), recordKey(c.Param("id")))
	}
}

// bodyCaptureWriter 在转发的同时保留一份响应体.
type bodyCaptureWriter struct {
	gin.ResponseWriter

	buf      bytes.Buffer
	overflow bool
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.buf.Len()+len(b) > maxCachedRecord {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}

	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

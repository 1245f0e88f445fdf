// Package context 在请求上下文中携带对象存储服务与存储管理器，并为日志补充追踪字段.
package context

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/chest/pkg/internal/replica"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/internal/storage"
	dbc "github.com/yeisme/chest/pkg/internal/storage/db"
	kvc "github.com/yeisme/chest/pkg/internal/storage/kv"
	mqc "github.com/yeisme/chest/pkg/internal/storage/mq"
	s3c "github.com/yeisme/chest/pkg/internal/storage/s3"
)

type key int

const (
	managerKey key = iota
	chestKey
	coordinatorKey
)

func value[T any](ctx context.Context, k key) T {
	v, _ := ctx.Value(k).(T)

	return v
}

// WithChest 注入对象存储服务.
func WithChest(ctx context.Context, chest *service.Chest) context.Context {
	return context.WithValue(ctx, chestKey, chest)
}

// GetChest 取出对象存储服务，未注入时为 nil.
func GetChest(ctx context.Context) *service.Chest {
	return value[*service.Chest](ctx, chestKey)
}

// WithCoordinator 注入复制协调器.
func WithCoordinator(ctx context.Context, coord *replica.Coordinator) context.Context {
	return context.WithValue(ctx, coordinatorKey, coord)
}

// GetCoordinator 取出复制协调器，未注入时为 nil.
func GetCoordinator(ctx context.Context) *replica.Coordinator {
	return value[*replica.Coordinator](ctx, coordinatorKey)
}

// WithStorageManager 注入存储管理器.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return context.WithValue(ctx, managerKey, mgr)
}

// GetManager 取出存储管理器，未注入时为 nil.
func GetManager(ctx context.Context) *storage.Manager {
	return value[*storage.Manager](ctx, managerKey)
}

func fromManager[T any](ctx context.Context, get func(*storage.Manager) *T) *T {
	if mgr := GetManager(ctx); mgr != nil {
		return get(mgr)
	}

	return nil
}

// GetS3Client 取出 S3 客户端.
func GetS3Client(ctx context.Context) *s3c.Client {
	return fromManager(ctx, (*storage.Manager).GetS3Client)
}

// GetDBClient 取出元数据库客户端.
func GetDBClient(ctx context.Context) *dbc.Client {
	return fromManager(ctx, (*storage.Manager).GetDBClient)
}

// GetMQClient 取出事件总线客户端.
func GetMQClient(ctx context.Context) *mqc.Client {
	return fromManager(ctx, (*storage.Manager).GetMQClient)
}

// GetKVClient 取出协商计数所用的 KV 客户端.
func GetKVClient(ctx context.Context) *kvc.Client {
	return fromManager(ctx, (*storage.Manager).GetKVClient)
}

// WithTraceContext 当前 span 有效时为 logger 补充 trace_id 与 span_id.
func WithTraceContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}

	return logger.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
}

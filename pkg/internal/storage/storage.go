// Package storage 聚合对象存储节点依赖的基础设施客户端：元数据库、消息队列、键值存储与 S3.
//
// Example:
//
// 初始化
//
//	 ctx := context.Background()
//	 mgr, err := storage.Init(ctx, configs.GetConfig())
//
//		if err != nil {
//		    // 处理错误
//		}
//
// 获取存储客户端
//
//	dbClient := mgr.GetDBClient()
//	mqClient := mgr.GetMQClient()
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/chest/pkg/configs"
	dbc "github.com/yeisme/chest/pkg/internal/storage/db"
	kvc "github.com/yeisme/chest/pkg/internal/storage/kv"
	mqc "github.com/yeisme/chest/pkg/internal/storage/mq"
	s3c "github.com/yeisme/chest/pkg/internal/storage/s3"
	nlog "github.com/yeisme/chest/pkg/log"
)

// Manager 聚合所有存储资源.
type Manager struct {
	DB *dbc.Client
	MQ *mqc.Client
	KV *kvc.Client
	S3 *s3c.Client // 仅在 chest.backend=s3 时初始化
}

// Init 按配置初始化所有客户端，任一失败时关闭已创建的客户端.
func Init(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	m := &Manager{}

	var err error

	if m.DB, err = dbc.New(ctx, &cfg.DB); err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	if m.MQ, err = mqc.New(ctx, &cfg.MQ, &cfg.Metrics); err != nil {
		_ = m.Close()

		return nil, fmt.Errorf("init mq: %w", err)
	}

	if m.KV, err = kvc.NewKVClientWithConfig(ctx, &cfg.KV); err != nil {
		_ = m.Close()

		return nil, fmt.Errorf("init kv: %w", err)
	}

	if cfg.Chest.Backend == "s3" {
		if m.S3, err = s3c.New(ctx, &cfg.S3); err != nil {
			_ = m.Close()

			return nil, fmt.Errorf("init s3: %w", err)
		}
	}

	nlog.Logger().Info().
		Str("db", cfg.DB.Family()).
		Str("mq", string(cfg.MQ.Type)).
		Str("kv", cfg.KV.Type).
		Bool("s3", m.S3 != nil).
		Msg("storage manager initialized")

	return m, nil
}

// Close 关闭所有已初始化的客户端.
func (m *Manager) Close() error {
	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	if m.S3 != nil {
		errs = append(errs, m.S3.Close())
	}

	return errors.Join(errs...)
}

// GetS3Client 获取 S3 客户端.
func (m *Manager) GetS3Client() *s3c.Client {
	return m.S3
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// Package db 打开元数据库连接，按配置的方言选择 gorm dialector.
// 各方言在带构建标签的文件中注册，可用 no_mysql、no_postgres、no_sqlite 裁剪.
package db

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormPrometheus "gorm.io/plugin/prometheus"

	"github.com/yeisme/chest/pkg/configs"
	nlog "github.com/yeisme/chest/pkg/log"
)

const metricsRefreshSeconds = 15

// driver 方言的打开方式与连接池约束.
type driver struct {
	open func(dsn string) gorm.Dialector
	// singleWriter 为 true 时连接池固定为一个连接
	singleWriter bool
}

var drivers = map[string]driver{}

func register(family string, d driver) {
	drivers[family] = d
}

// GetRegisteredDBTypes 返回当前构建支持的数据库类型（含别名）.
func GetRegisteredDBTypes() []configs.DBType {
	var types []configs.DBType

	for _, t := range []configs.DBType{
		configs.PostgreSQL, configs.Postgres, configs.Pg,
		configs.MySQL, configs.MariaDB, configs.SQLite,
	} {
		cfg := configs.DBConfig{Type: t}
		if _, ok := drivers[cfg.Family()]; ok {
			types = append(types, t)
		}
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// withParams 向 DSN 追加查询参数.
func withParams(dsn string, params ...string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	return dsn + sep + strings.Join(params, "&")
}

// Client 包装 gorm.DB.
type Client struct {
	*gorm.DB
}

// New 打开连接、配置连接池并 Ping 一次.
func New(ctx context.Context, cfg *configs.DBConfig) (*Client, error) {
	d, ok := drivers[cfg.Family()]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(d.open(cfg.GetDSN()), &gorm.Config{
		Logger:      NewLogger(cfg),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Family(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}

	if d.singleWriter {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Family(), err)
	}

	client := &Client{DB: db}

	if configs.GetConfig().Metrics.Enabled {
		if err := client.Use(gormPrometheus.New(gormPrometheus.Config{
			DBName:          cfg.Database,
			RefreshInterval: metricsRefreshSeconds,
		})); err != nil {
			return nil, fmt.Errorf("register gorm metrics: %w", err)
		}
	}

	l := nlog.Component("db")
	l.Info().Str("family", cfg.Family()).Str("database", cfg.Database).Msg("metadata database connected")

	return client, nil
}

// NewLogger 返回写入 zerolog 的 GORM 日志器，只记录警告和慢查询.
func NewLogger(cfg *configs.DBConfig) logger.Interface {
	l := nlog.Component("gorm")

	return logger.New(&l, logger.Config{
		SlowThreshold:             cfg.SlowThreshold,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Close 关闭底层连接.
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

package configs

import (
	"time"

	"github.com/spf13/viper"
)

// Role 节点角色.
type Role string

const (
	// RoleReplica 权威副本，容量不受限，负责广播缺失对象.
	RoleReplica Role = "replica"
	// RoleClient 受限客户端，按需从副本拉取对象.
	RoleClient Role = "client"
)

const (
	DefaultChestBackend        = "fs"
	DefaultChestRole           = RoleReplica
	DefaultChestLocation       = "data/chest"
	DefaultChestMaxSize        = 0 // 0 表示不限制
	DefaultChestCipher         = "aes-256-cbc"
	DefaultChestCompress       = "gzip"
	DefaultChestS3Prefix       = "objects"
	DefaultChestCron           = "0 */1 * * *" // 每小时一次
	DefaultMissingAttempts     = 60
	DefaultMissingDelay        = 500 * time.Millisecond
	DefaultMissingWarnEvery    = 10
	DefaultRemoteTimeout       = 30 * time.Second
	DefaultRemoteRPS           = 20.0
	DefaultRemoteBurst         = 40
	DefaultOrphanRetentionByte = 0
)

type (
	// ChestConfig 对象存储核心配置.
	ChestConfig struct {
		Backend    string         `mapstructure:"backend"    rule:"oneof=fs s3"`
		Role       Role           `mapstructure:"role"       rule:"oneof=replica client"`
		ServerURL  string         `mapstructure:"server_url" rule:"omitempty,url"`
		FS         ChestFSConfig  `mapstructure:"fs"`
		S3         ChestS3Config  `mapstructure:"s3"`
		Schedule   ScheduleConfig `mapstructure:"schedule"`
		Missing    MissingConfig  `mapstructure:"missing"`
		Orphans    OrphansConfig  `mapstructure:"orphans"`
		Remote     RemoteConfig   `mapstructure:"remote"`
		Namespaces []string       `mapstructure:"namespaces" rule:"dive,chest_ns"`
	}

	// ChestFSConfig 本地对象存储配置.
	ChestFSConfig struct {
		Location string `mapstructure:"location" rule:"required"`
		MaxSize  int64  `mapstructure:"max_size" rule:"min=0"`
		Cipher   string `mapstructure:"cipher"   rule:"oneof=aes-128-cbc aes-192-cbc aes-256-cbc"`
		Compress string `mapstructure:"compress" rule:"oneof=gzip zstd lz4 none"`
	}

	// ChestS3Config s3 后端配置，连接信息复用顶层 s3 配置.
	ChestS3Config struct {
		Prefix string `mapstructure:"prefix"`
	}

	// ScheduleConfig 周期任务 cron 表达式，空字符串表示禁用.
	ScheduleConfig struct {
		Collect      string `mapstructure:"collect"`
		CheckMissing string `mapstructure:"check_missing"`
		OrphanScan   string `mapstructure:"orphan_scan"`
		ClientSync   string `mapstructure:"client_sync"`
	}

	// MissingConfig 缺失对象协商参数.
	MissingConfig struct {
		Attempts  int           `mapstructure:"attempts"   rule:"min=1"`
		Delay     time.Duration `mapstructure:"delay"      rule:"min=0"`
		WarnEvery int           `mapstructure:"warn_every" rule:"min=1"`
	}

	// OrphansConfig 孤儿对象扫描配置.
	OrphansConfig struct {
		RetentionBytes int64          `mapstructure:"retention_bytes" rule:"min=0"`
		Sources        []OrphanSource `mapstructure:"sources"         rule:"dive"`
	}

	// OrphanSource 引用来源，扫描 table.column 中出现的对象 id.
	OrphanSource struct {
		Table  string `mapstructure:"table"  rule:"required,max=64"`
		Column string `mapstructure:"column" rule:"required,max=64"`
	}

	// RemoteConfig 客户端访问副本的请求参数.
	RemoteConfig struct {
		// Timeout 建连与等待响应头的上限，不限制字节流的传输时长
		Timeout time.Duration `mapstructure:"timeout" rule:"min=0"`
		RPS     float64       `mapstructure:"rps"     rule:"min=0"`
		Burst   int           `mapstructure:"burst"   rule:"min=0"`
	}
)

// Validate 校验配置.
func (c *ChestConfig) Validate() error {
	return validate(c)
}

// IsClient 是否为客户端角色.
func (c *ChestConfig) IsClient() bool {
	return c.Role == RoleClient
}

// NamespaceAllowed 判断命名空间是否允许，未配置时全部允许.
func (c *ChestConfig) NamespaceAllowed(ns string) bool {
	if len(c.Namespaces) == 0 {
		return true
	}

	for _, n := range c.Namespaces {
		if n == ns {
			return true
		}
	}

	return false
}

// setDefaults 设置对象存储配置的默认值.
func (c *ChestConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("chest.backend", DefaultChestBackend)
	v.SetDefault("chest.role", string(DefaultChestRole))
	v.SetDefault("chest.server_url", "")
	v.SetDefault("chest.namespaces", []string{})

	v.SetDefault("chest.fs.location", DefaultChestLocation)
	v.SetDefault("chest.fs.max_size", DefaultChestMaxSize)
	v.SetDefault("chest.fs.cipher", DefaultChestCipher)
	v.SetDefault("chest.fs.compress", DefaultChestCompress)

	v.SetDefault("chest.s3.prefix", DefaultChestS3Prefix)

	v.SetDefault("chest.schedule.collect", DefaultChestCron)
	v.SetDefault("chest.schedule.check_missing", DefaultChestCron)
	v.SetDefault("chest.schedule.orphan_scan", "")
	v.SetDefault("chest.schedule.client_sync", "")

	v.SetDefault("chest.missing.attempts", DefaultMissingAttempts)
	v.SetDefault("chest.missing.delay", DefaultMissingDelay)
	v.SetDefault("chest.missing.warn_every", DefaultMissingWarnEvery)

	v.SetDefault("chest.orphans.retention_bytes", DefaultOrphanRetentionByte)
	v.SetDefault("chest.orphans.sources", []OrphanSource{})

	v.SetDefault("chest.remote.timeout", DefaultRemoteTimeout)
	v.SetDefault("chest.remote.rps", DefaultRemoteRPS)
	v.SetDefault("chest.remote.burst", DefaultRemoteBurst)
}

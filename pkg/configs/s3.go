package configs

import (
	"time"

	"github.com/spf13/viper"
)

// S3Config S3 兼容对象存储连接配置，仅在 chest.backend=s3 时使用.
type S3Config struct {
	// Endpoint 可带 http:// 或 https:// 前缀，带前缀时以其为准决定是否启用 TLS
	Endpoint        string `mapstructure:"endpoint"          rule:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"       rule:"required,min=3,max=63"`
	Region          string `mapstructure:"region"`
	// CreateBucket 桶不存在时是否自动创建
	CreateBucket bool `mapstructure:"create_bucket"`
	// PartSize 分片上传的分片大小，0 表示由客户端决定
	PartSize uint64 `mapstructure:"part_size"`
	// ConnectTimeout 启动时检查桶的超时
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

func (c *S3Config) setDefaults(v *viper.Viper) {
	v.SetDefault("s3.endpoint", "localhost:9000")
	v.SetDefault("s3.access_key_id", "minioadmin")
	v.SetDefault("s3.secret_access_key", "minioadmin")
	v.SetDefault("s3.use_ssl", false)
	v.SetDefault("s3.bucket_name", "chest")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.create_bucket", true)
	v.SetDefault("s3.part_size", 16<<20)
	v.SetDefault("s3.connect_timeout", 10*time.Second)
}

package configs

import (
	"github.com/spf13/viper"
)

// KV 驱动名称.
const (
	KVTypeMemory     = "memory"
	KVTypeRedis      = "redis"
	KVTypeNATS       = "nats"
	KVTypeGroupcache = "groupcache"
)

// KVConfig 键值存储配置，保存缺失对象的协商计数与记录响应缓存.
// 多个节点需要共享计数时选择 redis 或 nats.
type KVConfig struct {
	Type       string             `mapstructure:"type"       rule:"oneof=memory redis nats groupcache"`
	Redis      RedisKVConfig      `mapstructure:"redis"`
	NATS       NATSKVConfig       `mapstructure:"nats"`
	Groupcache GroupcacheKVConfig `mapstructure:"groupcache"`
}

type (
	// RedisKVConfig Redis 连接.
	RedisKVConfig struct {
		Addr     string `mapstructure:"addr"      rule:"hostname_port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"        rule:"min=0,max=15"`
		PoolSize int    `mapstructure:"pool_size" rule:"min=0"`
	}

	// NATSKVConfig JetStream KV bucket.
	NATSKVConfig struct {
		URL      string `mapstructure:"url"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Bucket   string `mapstructure:"bucket"   rule:"required"`
		Replicas int    `mapstructure:"replicas" rule:"min=1,max=5"`
	}

	// GroupcacheKVConfig 进程内存储，Peers 非空时经 HTTP 池向对等节点读取.
	GroupcacheKVConfig struct {
		Name       string   `mapstructure:"name"        rule:"required"`
		CacheBytes int64    `mapstructure:"cache_bytes" rule:"min=1048576"`
		Self       string   `mapstructure:"self"`
		Peers      []string `mapstructure:"peers"`
		BasePath   string   `mapstructure:"base_path"`
	}
)

func (c *KVConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("kv.type", KVTypeMemory)

	v.SetDefault("kv.redis.addr", "localhost:6379")
	v.SetDefault("kv.redis.db", 0)
	v.SetDefault("kv.redis.pool_size", 0)

	v.SetDefault("kv.nats.url", "nats://localhost:4222")
	v.SetDefault("kv.nats.bucket", "chest-kv")
	v.SetDefault("kv.nats.replicas", 1)

	v.SetDefault("kv.groupcache.name", "chest")
	v.SetDefault("kv.groupcache.cache_bytes", 64<<20)
	v.SetDefault("kv.groupcache.self", "http://localhost:8080")
	v.SetDefault("kv.groupcache.base_path", "/_groupcache/")
}

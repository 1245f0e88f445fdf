package configs

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MQType 消息队列类型.
type MQType string

const (
	MQTypeNATS      MQType = "nats"
	MQTypeRedis     MQType = "redis"
	MQTypeGoChannel MQType = "gochannel" // 进程内，单节点或测试使用
)

// MQConfig 消息队列配置.
type MQConfig struct {
	Type   MQType         `mapstructure:"type"   rule:"oneof=nats redis gochannel"`
	Common MQCommonConfig `mapstructure:"common"`
	NATS   MQNATSConfig   `mapstructure:"nats"`
	Redis  MQRedisConfig  `mapstructure:"redis"`
}

// MQCommonConfig 各驱动共享的连接参数.
type MQCommonConfig struct {
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	// ClientID 同时作为持久订阅名的一部分，集群内每个节点必须不同，留空时取主机名
	ClientID      string        `mapstructure:"client_id"`
	MaxReconnects int           `mapstructure:"max_reconnects" rule:"min=-1,max=1000"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	PingInterval  time.Duration `mapstructure:"ping_interval"`
	MaxPingsOut   int           `mapstructure:"max_pings_out"  rule:"min=1,max=10"`
	BufferSize    int           `mapstructure:"buffer_size"    rule:"min=1"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	Endpoint      string        `mapstructure:"endpoint"`
}

// MQNATSConfig NATS 与 JetStream 配置.
type MQNATSConfig struct {
	JetStream     bool     `mapstructure:"jetstream"`
	StreamName    string   `mapstructure:"stream_name"    rule:"excludesall=.*>"`
	SubjectPrefix string   `mapstructure:"subject_prefix"`
	DurablePrefix string   `mapstructure:"durable_prefix"`
	ClusterURLs   []string `mapstructure:"cluster_urls"`
	JWT           string   `mapstructure:"jwt"`
	NKey          string   `mapstructure:"nkey"`

	StreamMaxMsgs  int64         `mapstructure:"stream_max_msgs"`
	StreamMaxBytes int64         `mapstructure:"stream_max_bytes"`
	StreamMaxAge   time.Duration `mapstructure:"stream_max_age"`
	StreamStorage  string        `mapstructure:"stream_storage"  rule:"oneof=file memory"`
	StreamReplicas int           `mapstructure:"stream_replicas" rule:"min=1,max=5"`

	AckWait       time.Duration `mapstructure:"ack_wait"`
	MaxDeliver    int           `mapstructure:"max_deliver"     rule:"min=1"`
	MaxAckPending int           `mapstructure:"max_ack_pending" rule:"min=1"`
}

// MQRedisConfig Redis Pub/Sub 配置.
type MQRedisConfig struct {
	Addr     string `mapstructure:"addr"     rule:"hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       rule:"min=0,max=15"`
}

// Servers 返回 NATS 连接串，配置了集群地址时优先使用.
func (c *MQConfig) Servers() string {
	if len(c.NATS.ClusterURLs) > 0 {
		return strings.Join(c.NATS.ClusterURLs, ",")
	}

	return c.Common.URL
}

func (c *MQConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mq.type", MQTypeGoChannel)

	v.SetDefault("mq.common.url", "nats://localhost:4222")
	v.SetDefault("mq.common.client_id", "")
	v.SetDefault("mq.common.max_reconnects", 60)
	v.SetDefault("mq.common.reconnect_wait", 2*time.Second)
	v.SetDefault("mq.common.ping_interval", 20*time.Second)
	v.SetDefault("mq.common.max_pings_out", 3)
	v.SetDefault("mq.common.buffer_size", 256)
	v.SetDefault("mq.common.enable_metrics", false)
	v.SetDefault("mq.common.endpoint", ":9092")

	v.SetDefault("mq.nats.jetstream", true)
	v.SetDefault("mq.nats.stream_name", "CHEST")
	v.SetDefault("mq.nats.subject_prefix", "chest")
	v.SetDefault("mq.nats.durable_prefix", "chest")
	v.SetDefault("mq.nats.stream_max_msgs", 100000)
	v.SetDefault("mq.nats.stream_max_bytes", 256<<20)
	v.SetDefault("mq.nats.stream_max_age", 24*time.Hour)
	v.SetDefault("mq.nats.stream_storage", "file")
	v.SetDefault("mq.nats.stream_replicas", 1)
	v.SetDefault("mq.nats.ack_wait", 30*time.Second)
	v.SetDefault("mq.nats.max_deliver", 3)
	v.SetDefault("mq.nats.max_ack_pending", 1000)

	v.SetDefault("mq.redis.addr", "localhost:6379")
	v.SetDefault("mq.redis.db", 0)
}

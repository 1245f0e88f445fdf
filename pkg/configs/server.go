package configs

import (
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultPort          = 8080      // 监听端口
	DefaultHost          = "0.0.0.0" // 监听地址
	DefaultReloadConfig  = true      // 是否启用配置热重载
	DefaultDebug         = false     // 调试模式，开启后注册 swagger 文档
	DefaultTimeout       = 30        // 读取请求头超时，单位秒
	DefaultMaxUploadSize = 1 << 30   // 单次上传的最大字节数
	DefaultMultipartMem  = 32 << 20  // multipart 表单在内存中保留的字节数，超出部分写临时文件
)

// ServerConfig HTTP 服务配置.
type ServerConfig struct {
	Port          int    `mapstructure:"port"            rule:"min=1,max=65535"`
	Host          string `mapstructure:"host"            rule:"ip"`
	ReloadConfig  bool   `mapstructure:"reload_config"`
	Debug         bool   `mapstructure:"debug"`
	Timeout       int    `mapstructure:"timeout"         rule:"min=1,max=300"`
	MaxUploadSize int64  `mapstructure:"max_upload_size" rule:"min=0"` // 0 表示不限制
	MultipartMem  int64  `mapstructure:"multipart_mem"   rule:"min=0"`
}

// GetTimeoutDuration 返回超时时间.
func (s *ServerConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// Addr 返回监听地址.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s *ServerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.reload_config", DefaultReloadConfig)
	v.SetDefault("server.debug", DefaultDebug)
	v.SetDefault("server.timeout", DefaultTimeout)
	v.SetDefault("server.max_upload_size", DefaultMaxUploadSize)
	v.SetDefault("server.multipart_mem", DefaultMultipartMem)
}

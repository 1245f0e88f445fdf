package configs

import "github.com/spf13/viper"

const (
	DefaultLogLevel      = "info"
	DefaultLogFormat     = LogFormatConsole
	DefaultLogEnableFile = false
	DefaultLogFilePath   = "logs/chest.log"
	DefaultLogMaxSize    = 100 // MB
	DefaultLogMaxBackups = 7
	DefaultLogMaxAge     = 28 // 天
	DefaultLogCompress   = true

	LogFormatConsole = "console" // 人读的彩色输出
	LogFormatJSON    = "json"    // 每行一个 JSON 事件，交给日志采集
)

// LogConfig 日志配置，文件输出始终为 JSON 并由 lumberjack 轮转.
type LogConfig struct {
	Level      string `mapstructure:"level"        rule:"oneof=trace debug info warn error"`
	Format     string `mapstructure:"format"       rule:"oneof=console json"`
	EnableFile bool   `mapstructure:"enable_file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size_mb"  rule:"min=0"`
	MaxBackups int    `mapstructure:"max_backups"  rule:"min=0"`
	MaxAge     int    `mapstructure:"max_age_days" rule:"min=0"`
	Compress   bool   `mapstructure:"compress"`
}

func (l *LogConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.enable_file", DefaultLogEnableFile)
	v.SetDefault("log.file_path", DefaultLogFilePath)
	v.SetDefault("log.max_size_mb", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age_days", DefaultLogMaxAge)
	v.SetDefault("log.compress", DefaultLogCompress)
}

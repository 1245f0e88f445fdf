package configs

import "github.com/spf13/viper"

// MetricsConfig Prometheus 指标配置，指标端点挂在主 HTTP 服务上.
type MetricsConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	Path           string            `mapstructure:"path"            rule:"startswith=/"`
	RuntimeMetrics bool              `mapstructure:"runtime_metrics"` // Go 运行时与进程指标
	Labels         map[string]string `mapstructure:"labels"`          // 附加到所有指标的常量标签
	Pprof          bool              `mapstructure:"pprof"`           // 同时暴露 /debug/pprof
}

func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.labels", map[string]string{
		"service": "chest",
	})
}

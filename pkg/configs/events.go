package configs

import "github.com/spf13/viper"

// EventsConfig 控制通知类事件的发布开关（全局与分主题）。
// 缺失对象请求属于复制协议本身，不受这些开关影响。
type EventsConfig struct {
	Enabled bool               `mapstructure:"enabled"` // 总开关
	Object  ObjectEventsConfig `mapstructure:"object"`
	Alias   AliasEventsConfig  `mapstructure:"alias"`
}

// ObjectEventsConfig 对象事件开关。
type ObjectEventsConfig struct {
	Stored   bool `mapstructure:"stored"`
	Trashed  bool `mapstructure:"trashed"`
	Unlinked bool `mapstructure:"unlinked"`
}

// AliasEventsConfig 别名事件开关。
type AliasEventsConfig struct {
	Updated bool `mapstructure:"updated"`
	Trashed bool `mapstructure:"trashed"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	// 总开关：默认启用事件系统
	v.SetDefault("events.enabled", true)

	v.SetDefault("events.object.stored", true)
	v.SetDefault("events.object.trashed", true)
	// 解除关联通常由回收任务批量触发，默认关闭
	v.SetDefault("events.object.unlinked", false)

	v.SetDefault("events.alias.updated", true)
	v.SetDefault("events.alias.trashed", true)
}

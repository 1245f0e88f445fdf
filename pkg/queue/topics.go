// Package queue 定义消息主题常量，供发布/订阅使用.
package queue

import "github.com/yeisme/chest/pkg/configs"

// 主题命名规范：chest.<域>.<动作>，尽量稳定且向后兼容.
// 域：object(对象生命周期)、replica(副本协商)、alias(命名空间别名)

const (
	// 副本协商领域.
	TopicMissingFileNeeded = "chest.missing-file-needed" // 副本缺少对象字节，请求持有该对象的客户端回传

	// 对象生命周期领域.
	TopicObjectStored   = "chest.object.stored"   // 字节已提交且元数据已持久化
	TopicObjectTrashed  = "chest.object.trashed"  // 对象记录进入回收状态，字节已删除
	TopicObjectUnlinked = "chest.object.unlinked" // 本地字节已删除，元数据保留

	// 别名领域.
	TopicAliasUpdated = "chest.alias.updated" // 命名空间内的别名指向了新的对象
	TopicAliasTrashed = "chest.alias.trashed" // 别名被回收
)

// 主题分组，用于批量订阅或调试.
var (
	// 对象相关主题集合.
	ObjectTopics = []string{TopicObjectStored, TopicObjectTrashed, TopicObjectUnlinked}

	// 别名相关主题集合.
	AliasTopics = []string{TopicAliasUpdated, TopicAliasTrashed}

	// 全部主题.
	AllTopics = []string{
		TopicMissingFileNeeded,
		TopicObjectStored, TopicObjectTrashed, TopicObjectUnlinked,
		TopicAliasUpdated, TopicAliasTrashed,
	}
)

// Enabled 判断按事件配置是否发布该主题，cfg 为空时全部发布.
// 缺失对象请求是复制协议的一部分，始终发布.
func Enabled(cfg *configs.EventsConfig, topic string) bool {
	if cfg == nil || topic == TopicMissingFileNeeded {
		return true
	}

	if !cfg.Enabled {
		return false
	}

	switch topic {
	case TopicObjectStored:
		return cfg.Object.Stored
	case TopicObjectTrashed:
		return cfg.Object.Trashed
	case TopicObjectUnlinked:
		return cfg.Object.Unlinked
	case TopicAliasUpdated:
		return cfg.Alias.Updated
	case TopicAliasTrashed:
		return cfg.Alias.Trashed
	default:
		return true
	}
}

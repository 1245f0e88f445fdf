package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
// 建议在发布消息时填充 TraceID、OccurredAt、Producer 等，便于追踪链路与审计.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID，可来自中间件或业务生成.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 副本协商 --------------------------

// MissingFilePayload 副本缺少对象字节.
type MissingFilePayload struct {
	ObjectID string `json:"objectId"`
	// Attempt 本次广播是协商中的第几次，周期扫描发出的广播为 0.
	Attempt int `json:"attempt,omitempty"`
}

// -------------------------- 对象生命周期 --------------------------

// ObjectRef 标识对象及其存储位置.
type ObjectRef struct {
	ObjectID string `json:"object_id"`
	Hash     string `json:"hash"`
	Size     int64  `json:"size,omitempty"`
	Mime     string `json:"mime,omitempty"`
	Location string `json:"location,omitempty"`
}

// ObjectStoredPayload 对象已提交.
type ObjectStoredPayload struct {
	Object     ObjectRef `json:"object"`
	FileName   string    `json:"file_name,omitempty"`
	Generation int64     `json:"generation"`
	Encrypted  bool      `json:"encrypted,omitempty"`
	Deduped    bool      `json:"deduped,omitempty"`
	AliasID    string    `json:"alias_id,omitempty"`
}

// ObjectTrashedPayload 对象被回收.
type ObjectTrashedPayload struct {
	Object  ObjectRef `json:"object"`
	Aliases []string  `json:"aliases,omitempty"`
}

// ObjectUnlinkedPayload 对象字节被解除本地关联.
type ObjectUnlinkedPayload struct {
	Object ObjectRef `json:"object"`
}

// -------------------------- 别名 --------------------------

// AliasPayload 别名变更.
type AliasPayload struct {
	AliasID   string `json:"alias_id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	ObjectID  string `json:"object_id"`
}

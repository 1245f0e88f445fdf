package queue

import "github.com/ThreeDotsLabs/watermill/message"

// -------------------------- 基于业务封装 events --------------------------

// publish 构造信封并发布到同名主题.
func publish[T any](pub message.Publisher, topic string, payload T, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(topic, msg)
}

// PublishMissingFileNeeded 发布 chest.missing-file-needed 事件。
// 持有该对象字节的客户端收到后应把原始字节回传给副本。
func PublishMissingFileNeeded(pub message.Publisher, payload MissingFilePayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicMissingFileNeeded, payload, opts...)
}

// ParseMissingFileNeeded 将 Watermill 消息解析为强类型 Envelope（MissingFilePayload）。
func ParseMissingFileNeeded(msg *message.Message) (Message[MissingFilePayload], error) {
	return ParseWatermillMessage[MissingFilePayload](msg)
}

// PublishObjectStored 发布 chest.object.stored 事件。
func PublishObjectStored(pub message.Publisher, payload ObjectStoredPayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicObjectStored, payload, opts...)
}

// ParseObjectStored 将 Watermill 消息解析为强类型 Envelope（ObjectStoredPayload）。
func ParseObjectStored(msg *message.Message) (Message[ObjectStoredPayload], error) {
	return ParseWatermillMessage[ObjectStoredPayload](msg)
}

// PublishObjectTrashed 发布 chest.object.trashed 事件。
func PublishObjectTrashed(pub message.Publisher, payload ObjectTrashedPayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicObjectTrashed, payload, opts...)
}

// PublishObjectUnlinked 发布 chest.object.unlinked 事件。
func PublishObjectUnlinked(pub message.Publisher, payload ObjectUnlinkedPayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicObjectUnlinked, payload, opts...)
}

// PublishAliasUpdated 发布 chest.alias.updated 事件。
func PublishAliasUpdated(pub message.Publisher, payload AliasPayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicAliasUpdated, payload, opts...)
}

// PublishAliasTrashed 发布 chest.alias.trashed 事件。
func PublishAliasTrashed(pub message.Publisher, payload AliasPayload, opts ...func(*EventHeader)) error {
	return publish(pub, TopicAliasTrashed, payload, opts...)
}

package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/chest/pkg/configs"
)

// RedisPublisher 只发送负载，事件信封本身携带头部，元数据不经过 Redis.
type RedisPublisher struct {
	client  *redis.Client
	timeout time.Duration
}

// RedisSubscriber Redis Subscriber 实现.
// 每次 Subscribe 创建独立的 PubSub，Close 时统一关闭.
type RedisSubscriber struct {
	client  *redis.Client
	subs    []*redis.PubSub
	buffer  int
	logger  watermill.LoggerAdapter
	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

// redisFactory 创建 Redis Publisher & Subscriber，两者共享同一个连接池.
func redisFactory(
	ctx context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}

	pub := &RedisPublisher{client: rdb, timeout: cfg.Common.ReconnectWait}

	sub := &RedisSubscriber{
		client:  rdb,
		buffer:  cfg.Common.BufferSize,
		logger:  logger,
		closeCh: make(chan struct{}),
	}

	return pub, sub, nil
}

// Publish 逐条发布，单条超时取自重连等待.
func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		if err := p.publish(msg.Context(), topic, msg.Payload); err != nil {
			return fmt.Errorf("redis publish %s: %w", topic, err)
		}
	}

	return nil
}

func (p *RedisPublisher) publish(ctx context.Context, topic string, payload []byte) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	return p.client.Publish(ctx, topic, payload).Err()
}

// Close 连接由 Subscriber 关闭.
func (p *RedisPublisher) Close() error {
	return nil
}

// Subscribe 每个主题独立的 PubSub，消息确认后才投递下一条.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errSubscriberClosed
	}

	ps := s.client.Subscribe(ctx, topic)
	s.subs = append(s.subs, ps)

	ch := make(chan *message.Message, s.buffer)

	go func() {
		defer close(ch)

		for {
			msg, err := ps.ReceiveMessage(ctx)
			if err != nil {
				select {
				case <-s.closeCh:
				case <-ctx.Done():
				default:
					s.logger.Error("redis receive failed", err, watermill.LogFields{"topic": topic})
				}

				return
			}

			wmMsg := message.NewMessage(watermill.NewUUID(), []byte(msg.Payload))
			wmMsg.SetContext(ctx)

			select {
			case ch <- wmMsg:
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			}

			select {
			case <-wmMsg.Acked():
			case <-wmMsg.Nacked():
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close 关闭所有订阅与共享连接.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	close(s.closeCh)

	for _, ps := range s.subs {
		if err := ps.Close(); err != nil {
			s.logger.Error("close redis pubsub failed", err, nil)
		}
	}

	return s.client.Close()
}

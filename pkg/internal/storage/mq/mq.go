// Package mq 基于 watermill 的事件总线，按配置选择 NATS、Redis 或进程内驱动.
//
//	client, err := mq.New(ctx, &cfg.MQ, &cfg.Metrics)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	_ = client.Publisher().Publish(topic, msg)
//	ch, err := client.Subscriber().Subscribe(ctx, topic)
package mq

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/chest/pkg/configs"
	nlog "github.com/yeisme/chest/pkg/log"
)

// HealthTopic 健康检查探测消息的主题，没有订阅者.
const HealthTopic = "chest.health"

// Factory 按配置创建一对 Publisher 与 Subscriber.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册驱动，同名覆盖.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 返回已注册的驱动，按名称排序.
func GetRegisteredMQTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}

// Client 持有事件总线两端，可选地挂上 watermill 指标.
type Client struct {
	publisher  message.Publisher
	subscriber message.Subscriber

	router       *message.Router
	closeMetrics func()
}

// NewClient 包装已有的 Publisher 与 Subscriber.
func NewClient(pub message.Publisher, sub message.Subscriber) *Client {
	return &Client{publisher: pub, subscriber: sub}
}

// Publisher 返回发布端.
func (c *Client) Publisher() message.Publisher { return c.publisher }

// Subscriber 返回订阅端.
func (c *Client) Subscriber() message.Subscriber { return c.subscriber }

// Ping 向健康主题发布一条探测消息.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.publisher == nil {
		return errors.New("mq publisher not initialized")
	}

	msg := message.NewMessage(watermill.NewUUID(), []byte("ping"))
	msg.SetContext(ctx)

	return c.publisher.Publish(HealthTopic, msg)
}

// Close 先关闭两端再停止指标 router.
func (c *Client) Close() error {
	var errs []error

	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}

	if c.subscriber != nil && any(c.subscriber) != any(c.publisher) {
		errs = append(errs, c.subscriber.Close())
	}

	if c.router != nil {
		errs = append(errs, c.router.Close())
	}

	if c.closeMetrics != nil {
		c.closeMetrics()
	}

	return errors.Join(errs...)
}

// NewLogger 返回写入 zerolog 的 watermill 日志适配器.
func NewLogger() watermill.LoggerAdapter {
	return zerologAdapter{l: nlog.Component("mq")}
}

// New 按配置创建事件总线客户端.
func New(ctx context.Context, cfg *configs.MQConfig, metricsCfg *configs.MetricsConfig) (*Client, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type %q (registered: %v)", cfg.Type, GetRegisteredMQTypes())
	}

	logger := NewLogger()

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	client := NewClient(pub, sub)

	if metricsCfg != nil && metricsCfg.Enabled && cfg.Common.EnableMetrics {
		if err := client.decorateMetrics(ctx, cfg.Common.Endpoint, logger); err != nil {
			_ = client.Close()

			return nil, err
		}
	}

	l := nlog.Component("mq")
	l.Info().
		Str("type", string(cfg.Type)).
		Bool("metrics", client.router != nil).
		Msg("event bus ready")

	return client, nil
}

// decorateMetrics 在独立端口暴露 watermill 的发布与订阅指标.
func (c *Client) decorateMetrics(ctx context.Context, endpoint string, logger watermill.LoggerAdapter) error {
	registry, closeServer := metrics.CreateRegistryAndServeHTTP(endpoint)
	c.closeMetrics = closeServer

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	c.router = router

	builder := metrics.NewPrometheusMetricsBuilder(registry, "chest", "events")
	builder.AddPrometheusRouterMetrics(router)

	go func() {
		if err := router.Run(ctx); err != nil {
			l := nlog.Component("mq")
			l.Error().Err(err).Msg("metrics router stopped")
		}
	}()

	if c.publisher, err = builder.DecoratePublisher(c.publisher); err != nil {
		return fmt.Errorf("decorate publisher: %w", err)
	}

	if c.subscriber, err = builder.DecorateSubscriber(c.subscriber); err != nil {
		return fmt.Errorf("decorate subscriber: %w", err)
	}

	return nil
}

package mq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/chest/pkg/configs"
)

const (
	drainTimeout   = 30 * time.Second
	flusherTimeout = 10 * time.Second
)

func init() {
	RegisterFactory(configs.MQTypeNATS, natsFactory)
}

// natsFactory 创建 NATS Publisher 与 Subscriber.
//
// 缺失对象广播需要送达每个节点，因此订阅不使用队列组，
// 持久订阅名带上节点标识，每个节点各自消费一份.
func natsFactory(
	ctx context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	node := nodeID(cfg)
	opts := connectOptions(cfg, node)

	if cfg.NATS.JetStream {
		if err := provisionStream(ctx, cfg, opts); err != nil {
			return nil, nil, err
		}
	}

	js := jetStreamConfig(cfg, node)
	marshaler := &nats.JSONMarshaler{}

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         cfg.Servers(),
		NatsOptions: opts,
		JetStream:   js,
		Marshaler:   marshaler,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("nats publisher: %w", err)
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:            cfg.Servers(),
		NatsOptions:    opts,
		JetStream:      js,
		Unmarshaler:    marshaler,
		AckWaitTimeout: cfg.NATS.AckWait,
	}, logger)
	if err != nil {
		_ = pub.Close()

		return nil, nil, fmt.Errorf("nats subscriber: %w", err)
	}

	logger.Info("nats connected", watermill.LogFields{
		"servers":   cfg.Servers(),
		"jetstream": cfg.NATS.JetStream,
		"stream":    cfg.NATS.StreamName,
	})

	return pub, sub, nil
}

func connectOptions(cfg *configs.MQConfig, node string) []nc.Option {
	opts := []nc.Option{
		nc.Name(node),
		nc.MaxReconnects(cfg.Common.MaxReconnects),
		nc.ReconnectWait(cfg.Common.ReconnectWait),
		nc.PingInterval(cfg.Common.PingInterval),
		nc.MaxPingsOutstanding(cfg.Common.MaxPingsOut),
		nc.DrainTimeout(drainTimeout),
		nc.FlusherTimeout(flusherTimeout),
		nc.RetryOnFailedConnect(true),
	}

	switch {
	case cfg.NATS.JWT != "":
		opts = append(opts, nc.UserJWTAndSeed(cfg.NATS.JWT, cfg.NATS.NKey))
	case cfg.NATS.NKey != "":
		opts = append(opts, nc.Nkey(cfg.NATS.NKey, nil))
	case cfg.Common.User != "":
		opts = append(opts, nc.UserInfo(cfg.Common.User, cfg.Common.Password))
	}

	return opts
}

// jetStreamConfig 流由 provisionStream 统一创建，watermill 只负责订阅.
func jetStreamConfig(cfg *configs.MQConfig, node string) nats.JetStreamConfig {
	if !cfg.NATS.JetStream {
		return nats.JetStreamConfig{Disabled: true}
	}

	return nats.JetStreamConfig{
		AutoProvision: false,
		TrackMsgId:    true,
		DurablePrefix: cfg.NATS.DurablePrefix,
		DurableCalculator: func(prefix, topic string) string {
			return durableName(prefix, node, topic)
		},
		SubscribeOptions: []nc.SubOpt{
			nc.DeliverNew(),
			nc.MaxDeliver(cfg.NATS.MaxDeliver),
			nc.MaxAckPending(cfg.NATS.MaxAckPending),
		},
	}
}

// provisionStream 确保覆盖 <prefix>.> 的流存在，已存在时更新限额.
func provisionStream(ctx context.Context, cfg *configs.MQConfig, opts []nc.Option) error {
	conn, err := nc.Connect(cfg.Servers(), opts...)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer conn.Close()

	js, err := conn.JetStream(nc.Context(ctx))
	if err != nil {
		return fmt.Errorf("jetstream: %w", err)
	}

	storage := nc.FileStorage
	if cfg.NATS.StreamStorage == "memory" {
		storage = nc.MemoryStorage
	}

	sc := &nc.StreamConfig{
		Name:      cfg.NATS.StreamName,
		Subjects:  []string{strings.TrimSuffix(cfg.NATS.SubjectPrefix, ".") + ".>"},
		MaxMsgs:   cfg.NATS.StreamMaxMsgs,
		MaxBytes:  cfg.NATS.StreamMaxBytes,
		MaxAge:    cfg.NATS.StreamMaxAge,
		Storage:   storage,
		Replicas:  cfg.NATS.StreamReplicas,
		Retention: nc.InterestPolicy,
	}

	_, err = js.StreamInfo(sc.Name)

	switch {
	case errors.Is(err, nc.ErrStreamNotFound):
		_, err = js.AddStream(sc)
	case err == nil:
		_, err = js.UpdateStream(sc)
	}

	if err != nil {
		return fmt.Errorf("provision stream %s: %w", sc.Name, err)
	}

	return nil
}

// nodeID 返回节点标识，未配置时取主机名.
func nodeID(cfg *configs.MQConfig) string {
	if cfg.Common.ClientID != "" {
		return cfg.Common.ClientID
	}

	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}

	return "chest-" + watermill.NewShortUUID()
}

var durableReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// durableName 持久订阅名不允许出现 '.'，按节点与主题区分.
func durableName(prefix, node, topic string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, node, topic} {
		if p != "" {
			parts = append(parts, durableReplacer.Replace(p))
		}
	}

	return strings.Join(parts, "-")
}

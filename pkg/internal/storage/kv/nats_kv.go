package kv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yeisme/chest/pkg/configs"
)

// NATSKV 基于 JetStream KV bucket，多副本共享协商计数.
// bucket 不设 MaxAge，过期由 ttl 包装值在读取时惰性清理.
type NATSKV struct {
	kv   nats.KeyValue
	conn *nats.Conn
}

// NewNATSKV 连接 NATS 并创建或复用 bucket.
func NewNATSKV(_ context.Context, config any) (KVStore, error) {
	cfg, ok := config.(*configs.NATSKVConfig)
	if !ok {
		return nil, errors.New("invalid NATS config")
	}

	var opts []nats.Option
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	bucket, err := js.KeyValue(cfg.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		bucket, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      cfg.Bucket,
			Description: "chest negotiation counters",
			History:     1,
			Replicas:    max(cfg.Replicas, 1),
		})
	}

	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open kv bucket %q: %w", cfg.Bucket, err)
	}

	return &NATSKV{kv: bucket, conn: nc}, nil
}

// NATS 的键只允许 [-/_=.A-Za-z0-9]，对象 id 中的 @ 与前缀中的 : 需要编码.
func natsKey(key string) string { return base64.RawURLEncoding.EncodeToString([]byte(key)) }

func fromNATSKey(encoded string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(encoded)

	return string(b), err == nil
}

// lookup 读取并解包，过期的键会被删除并视为不存在.
func (n *NATSKV) lookup(key string) ([]byte, error) {
	entry, err := n.kv.Get(natsKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, notFound(key)
	}

	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	val, live, err := unwrapTTL(entry.Value(), time.Now())
	if err != nil {
		return nil, err
	}

	if !live {
		_ = n.kv.Delete(natsKey(key))
		return nil, notFound(key)
	}

	return val, nil
}

func (n *NATSKV) Get(_ context.Context, key string) ([]byte, error) {
	return n.lookup(key)
}

func (n *NATSKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	wrapped, err := wrapTTL(value, ttl)
	if err != nil {
		return err
	}

	if _, err := n.kv.Put(natsKey(key), wrapped); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	return nil
}

func (n *NATSKV) Delete(_ context.Context, key string) error {
	if err := n.kv.Delete(natsKey(key)); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

func (n *NATSKV) Exists(_ context.Context, key string) (bool, error) {
	_, err := n.lookup(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}

	return err == nil, err
}

func (n *NATSKV) Keys(_ context.Context, pattern string) ([]string, error) {
	all, err := n.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	keys := make([]string, 0, len(all))

	for _, encoded := range all {
		key, ok := fromNATSKey(encoded)
		if !ok || !matchKey(pattern, key) {
			continue
		}

		if _, err := n.lookup(key); err == nil {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func (n *NATSKV) Close() error {
	n.conn.Close()
	return nil
}

func init() {
	RegisterKVFactory(KVTypeNATS, NewNATSKV)
}

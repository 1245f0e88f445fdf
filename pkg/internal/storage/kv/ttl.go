package kv

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// ttlMagic 标记带过期时间的值，没有原生 TTL 的驱动（内存、nats、groupcache）共用这一格式.
const ttlMagic = "CHTTL1:"

type ttlValue struct {
	V []byte `json:"v"`
	E int64  `json:"e"` // unix 秒
}

// wrapTTL ttl>0 时包装出带过期时间的值，否则原样返回.
func wrapTTL(value []byte, ttl time.Duration) ([]byte, error) {
	if ttl <= 0 {
		return value, nil
	}

	b, err := sonic.Marshal(ttlValue{V: value, E: time.Now().Add(ttl).Unix()})
	if err != nil {
		return nil, fmt.Errorf("marshal ttl value: %w", err)
	}

	return append([]byte(ttlMagic), b...), nil
}

// unwrapTTL 解出原始值，live 为 false 表示已过期.
func unwrapTTL(b []byte, now time.Time) (value []byte, live bool, err error) {
	if !bytes.HasPrefix(b, []byte(ttlMagic)) {
		return b, true, nil
	}

	var tv ttlValue
	if err := sonic.Unmarshal(b[len(ttlMagic):], &tv); err != nil {
		return nil, false, fmt.Errorf("unmarshal ttl value: %w", err)
	}

	if tv.E > 0 && now.Unix() >= tv.E {
		return nil, false, nil
	}

	return tv.V, true, nil
}

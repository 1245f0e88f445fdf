package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yeisme/chest/pkg/cache"
	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/metrics"
	"github.com/yeisme/chest/pkg/queue"
)

// 缺失广播的来源，用作指标标签.
const (
	sourceSweep       = "sweep"
	sourceNegotiation = "negotiation"
	sourceClient      = "client"
)

// RequestMissing 广播缺失对象请求，周期扫描使用.
func (c *Chest) RequestMissing(objectID string) {
	c.requestMissing(objectID, 0, sourceSweep)
}

func (c *Chest) requestMissing(objectID string, attempt int, source string) {
	metrics.MissingRequests.WithLabelValues(source).Inc()

	c.emit(queue.TopicMissingFileNeeded, func() error {
		return queue.PublishMissingFileNeeded(c.pub, queue.MissingFilePayload{ObjectID: objectID, Attempt: attempt})
	})
}

// negotiate 反复广播缺失请求直到字节出现或次数耗尽.
// 剩余次数保存在计数缓存中，耗尽后清除并返回 NotFound.
func (c *Chest) negotiate(ctx context.Context, objectID, hash string) error {
	_, err, _ := c.flight.Do("negotiate:"+objectID, func() (any, error) {
		return nil, c.negotiateOnce(ctx, objectID, hash)
	})

	return err
}

func (c *Chest) negotiateOnce(ctx context.Context, objectID, hash string) error {
	attempts, delay, warnEvery := c.missingParams()
	ttl := time.Duration(attempts+1) * delay * 2

	left := attempts

	if c.counters != nil {
		v, err := cache.Get[int](ctx, c.counters, objectID)

		switch {
		case err == nil:
			left = v
		case !cache.IsMiss(err):
			c.log.Warn().Err(err).Str("object_id", objectID).Msg("read negotiation counter failed")
		}
	}

	for {
		ok, err := c.backend.Exists(ctx, hash)
		if err != nil {
			return err
		}

		if ok {
			c.clearCounter(ctx, objectID)
			metrics.NegotiationResults.WithLabelValues("resolved").Inc()

			return nil
		}

		if left <= 0 {
			c.clearCounter(ctx, objectID)
			metrics.NegotiationResults.WithLabelValues("exhausted").Inc()

			return fmt.Errorf("%w: %s: no more attempts", backend.ErrNotFound, objectID)
		}

		left--

		if c.counters != nil {
			if err := cache.Set(ctx, c.counters, objectID, left, ttl); err != nil {
				c.log.Warn().Err(err).Str("object_id", objectID).Msg("store negotiation counter failed")
			}
		}

		attempt := attempts - left
		c.requestMissing(objectID, attempt, sourceNegotiation)

		if attempt%warnEvery == 0 {
			c.log.Warn().Str("object_id", objectID).Int("attempt", attempt).Int("left", left).
				Msg("still waiting for a peer to supply the object")
		}

		select {
		case <-ctx.Done():
			metrics.NegotiationResults.WithLabelValues("canceled").Inc()

			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Chest) clearCounter(ctx context.Context, objectID string) {
	if c.counters == nil {
		return
	}

	if err := c.counters.Delete(ctx, objectID); err != nil && !cache.IsMiss(err) {
		c.log.Debug().Err(err).Str("object_id", objectID).Msg("clear negotiation counter failed")
	}
}

func (c *Chest) missingParams() (attempts int, delay time.Duration, warnEvery int) {
	m := c.cfg.Missing

	attempts, delay, warnEvery = m.Attempts, m.Delay, m.WarnEvery
	if attempts <= 0 {
		attempts = configs.DefaultMissingAttempts
	}

	if delay <= 0 {
		delay = configs.DefaultMissingDelay
	}

	if warnEvery <= 0 {
		warnEvery = configs.DefaultMissingWarnEvery
	}

	return attempts, delay, warnEvery
}

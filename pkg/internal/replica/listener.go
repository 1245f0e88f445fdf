package replica

import (
	"context"
	"errors"

	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/model"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/queue"
)

// listener 客户端角色下消费缺失广播的后台循环.
type listener struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startListener 订阅缺失广播，已在运行时什么也不做. 调用方持有 c.mu.
func (c *Coordinator) startListener(ctx context.Context) error {
	if c.listener != nil || c.sub == nil {
		return nil
	}

	lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	msgs, err := c.sub.Subscribe(lctx, queue.TopicMissingFileNeeded)
	if err != nil {
		cancel()

		return err
	}

	l := &listener{cancel: cancel, done: make(chan struct{})}
	c.listener = l

	go func() {
		defer close(l.done)

		for msg := range msgs {
			m, err := queue.ParseMissingFileNeeded(msg)
			if err != nil {
				c.log.Warn().Err(err).Str("msg_id", msg.UUID).Msg("malformed missing-file event")
				msg.Ack()

				continue
			}

			c.HandleMissing(lctx, m.Payload.ObjectID)
			msg.Ack()
		}
	}()

	c.log.Info().Str("topic", queue.TopicMissingFileNeeded).Msg("listening for missing objects")

	return nil
}

// stopListener 取消订阅并等待循环退出. 调用方持有 c.mu.
func (c *Coordinator) stopListener() {
	if c.listener == nil {
		return
	}

	c.listener.cancel()
	<-c.listener.done
	c.listener = nil

	c.log.Info().Msg("stopped listening for missing objects")
}

// HandleMissing 本地持有字节时把原始字节回传给副本，返回是否回传成功.
// 后端未就绪或本地没有字节时忽略.
func (c *Coordinator) HandleMissing(ctx context.Context, objectID string) bool {
	l := c.log.With().Str("object_id", objectID).Logger()

	if !c.chest.Ready() {
		l.Debug().Msg("backend not ready, ignoring missing-file event")

		return false
	}

	hash, err := model.ParseObjectID(objectID)
	if err != nil {
		l.Warn().Err(err).Msg("invalid object id in missing-file event")

		return false
	}

	be := c.chest.Backend()

	ok, err := be.Exists(ctx, hash)
	if err != nil || !ok {
		return false
	}

	r := c.chest.Remote()
	if r == nil {
		l.Warn().Err(service.ErrNoRemote).Msg("cannot answer missing-file event")

		return false
	}

	rec, err := c.chest.Meta().GetObject(ctx, objectID)
	if err != nil && !errors.Is(err, meta.ErrNotFound) {
		l.Warn().Err(err).Msg("read record failed")
	}

	stream, err := be.Open(ctx, hash, nil, nil)
	if err != nil {
		l.Warn().Err(err).Msg("open local bytes failed")

		return false
	}
	defer stream.Close()

	if err := r.Supply(ctx, objectID, stream, rec); err != nil {
		l.Warn().Err(err).Msg("supply to replica failed")

		return false
	}

	l.Info().Msg("answered missing-file event")

	return true
}

package service

import (
	"context"
	"fmt"

	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/model"
	"github.com/yeisme/chest/pkg/queue"
	"github.com/yeisme/chest/pkg/tracing"
)

// Trash 回收对象：回收指向它的别名、标记记录为 trashed 并删除字节.
// 记录不存在时什么也不做，重复调用无副作用.
func (c *Chest) Trash(ctx context.Context, objectID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "chest.Trash")
	defer func() { tracing.EndSpan(span, err) }()

	if err := c.ensureReady(); err != nil {
		return err
	}

	hash, err := model.ParseObjectID(objectID)
	if err != nil {
		return err
	}

	persisted, err := c.meta.ObjectPersisted(ctx, objectID)
	if err != nil || !persisted {
		return err
	}

	var (
		rec     *model.ObjectRecord
		aliases []string
	)

	err = c.meta.Transaction(ctx, func(tx meta.Store) error {
		rows, err := tx.FindAliases(ctx, meta.Filter{Where: map[string]any{
			"object_id": objectID,
			"status":    model.StatusPublished,
		}})
		if err != nil {
			return err
		}

		for i := range rows {
			rows[i].Status = model.StatusTrashed
			if err := tx.SaveAlias(ctx, &rows[i]); err != nil {
				return fmt.Errorf("trash alias %s: %w", rows[i].ID, err)
			}

			aliases = append(aliases, rows[i].ID)
		}

		rec, err = tx.GetObject(ctx, objectID)
		if err != nil {
			return err
		}

		rec.Status = model.StatusTrashed

		return tx.SaveObject(ctx, rec)
	})
	if err != nil {
		return fmt.Errorf("trash %s: %w", objectID, err)
	}

	if err := c.backend.Delete(ctx, hash); err != nil {
		return fmt.Errorf("delete bytes of %s: %w", objectID, err)
	}

	c.log.Info().Str("object_id", objectID).Int("aliases", len(aliases)).Msg("object trashed")

	c.emit(queue.TopicObjectTrashed, func() error {
		return queue.PublishObjectTrashed(c.pub, queue.ObjectTrashedPayload{Object: c.ref(rec), Aliases: aliases})
	})

	return nil
}

// Unlink 标记字节不再需要保存在本地并删除字节，记录保持可查询.
func (c *Chest) Unlink(ctx context.Context, objectID string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "chest.Unlink")
	defer func() { tracing.EndSpan(span, err) }()

	if err := c.ensureReady(); err != nil {
		return err
	}

	hash, err := model.ParseObjectID(objectID)
	if err != nil {
		return err
	}

	persisted, err := c.meta.ObjectPersisted(ctx, objectID)
	if err != nil || !persisted {
		return err
	}

	rec, err := c.meta.GetObject(ctx, objectID)
	if err != nil {
		return err
	}

	if rec.Link != model.LinkUnlinked {
		rec.Link = model.LinkUnlinked
		if err := c.meta.SaveObject(ctx, rec); err != nil {
			return fmt.Errorf("unlink %s: %w", objectID, err)
		}
	}

	if err := c.backend.Delete(ctx, hash); err != nil {
		return fmt.Errorf("delete bytes of %s: %w", objectID, err)
	}

	c.emit(queue.TopicObjectUnlinked, func() error {
		return queue.PublishObjectUnlinked(c.pub, queue.ObjectUnlinkedPayload{Object: c.ref(rec)})
	})

	return nil
}

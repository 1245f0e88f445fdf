package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/model"
	"github.com/yeisme/chest/pkg/queue"
	"github.com/yeisme/chest/pkg/rule"
)

// setAlias 让 (namespace, name) 指向 objectID，并回收同名的旧别名.
func setAlias(ctx context.Context, tx meta.Store, namespace, name, objectID string) (*model.AliasRecord, error) {
	id := model.AliasID(namespace, objectID)

	prev, err := tx.FindAliases(ctx, meta.Filter{Where: map[string]any{
		"namespace": namespace,
		"name":      name,
		"status":    model.StatusPublished,
	}})
	if err != nil {
		return nil, fmt.Errorf("find aliases %s/%s: %w", namespace, name, err)
	}

	for i := range prev {
		if prev[i].ID == id {
			continue
		}

		prev[i].Status = model.StatusTrashed
		if err := tx.SaveAlias(ctx, &prev[i]); err != nil {
			return nil, fmt.Errorf("retire alias %s: %w", prev[i].ID, err)
		}
	}

	alias, err := tx.GetAlias(ctx, id)
	if err != nil {
		if !errors.Is(err, meta.ErrNotFound) {
			return nil, err
		}

		alias = &model.AliasRecord{ID: id, Namespace: namespace, ObjectID: objectID}
	}

	alias.Name = name
	alias.Status = model.StatusPublished

	if err := tx.SaveAlias(ctx, alias); err != nil {
		return nil, fmt.Errorf("save alias %s: %w", id, err)
	}

	return alias, nil
}

// checkNamespace 命名空间会拼进别名 id，需先通过 chest_ns 规则再检查白名单.
func (c *Chest) checkNamespace(namespace string, optional bool) error {
	if optional && namespace == "" {
		return nil
	}

	if err := rule.ValidateVar(namespace, "chest_ns"); err != nil {
		return fmt.Errorf("namespace %q: %w", namespace, err)
	}

	if !c.cfg.NamespaceAllowed(namespace) {
		return fmt.Errorf("%w: %s", ErrNamespaceNotAllowed, namespace)
	}

	return nil
}

// SetAlias 让 (namespace, name) 指向已存在的对象，返回别名 id.
func (c *Chest) SetAlias(ctx context.Context, namespace, name, objectID string) (string, error) {
	if err := c.ensureReady(); err != nil {
		return "", err
	}

	if err := c.checkNamespace(namespace, false); err != nil {
		return "", err
	}

	rec, err := c.Record(ctx, objectID)
	if err != nil {
		return "", err
	}

	if name == "" {
		name = rec.Name
	}

	var alias *model.AliasRecord

	err = c.meta.Transaction(ctx, func(tx meta.Store) error {
		alias, err = setAlias(ctx, tx, namespace, name, rec.ID)

		return err
	})
	if err != nil {
		return "", err
	}

	c.emit(queue.TopicAliasUpdated, func() error {
		return queue.PublishAliasUpdated(c.pub, aliasPayload(alias))
	})

	return alias.ID, nil
}

// ResolveAlias 返回 (namespace, name) 当前指向的别名记录.
func (c *Chest) ResolveAlias(ctx context.Context, namespace, name string) (*model.AliasRecord, error) {
	rows, err := c.meta.FindAliases(ctx, meta.Filter{
		Where: map[string]any{
			"namespace": namespace,
			"name":      name,
			"status":    model.StatusPublished,
		},
		OrderBy: "updated_at",
		Desc:    true,
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: alias %s/%s", backend.ErrNotFound, namespace, name)
	}

	return &rows[0], nil
}

// TrashAlias 回收别名，对象本身不受影响，重复调用无副作用.
func (c *Chest) TrashAlias(ctx context.Context, aliasID string) error {
	if err := c.ensureReady(); err != nil {
		return err
	}

	alias, err := c.meta.GetAlias(ctx, aliasID)
	if errors.Is(err, meta.ErrNotFound) {
		return nil
	}

	if err != nil {
		return err
	}

	if alias.Status == model.StatusTrashed {
		return nil
	}

	alias.Status = model.StatusTrashed
	if err := c.meta.SaveAlias(ctx, alias); err != nil {
		return fmt.Errorf("trash alias %s: %w", aliasID, err)
	}

	c.emit(queue.TopicAliasTrashed, func() error {
		return queue.PublishAliasTrashed(c.pub, aliasPayload(alias))
	})

	return nil
}

func aliasPayload(a *model.AliasRecord) queue.AliasPayload {
	return queue.AliasPayload{AliasID: a.ID, Namespace: a.Namespace, Name: a.Name, ObjectID: a.ObjectID}
}

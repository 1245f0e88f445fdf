package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/model"
	"github.com/yeisme/chest/pkg/queue"
	"github.com/yeisme/chest/pkg/tracing"
)

// SupplyOptions 提交参数.
type SupplyOptions struct {
	// FileName 原始文件名，会被清理，为空时使用暂存文件名.
	FileName string
	// Extension 显式扩展名，优先级最高.
	Extension string
	// RelatedObjectID 期望得到的对象 id，用于回应缺失对象请求.
	// 设置后按该 id 串行化，且字节按原样保存并校验哈希.
	RelatedObjectID string
	// RecipientCert 接收方证书 PEM，非空时加密保存.
	RecipientCert []byte
	// Encryption 原样提交已加密字节时附带的封装描述，仅在新建记录时使用.
	Encryption *backend.Encryption
	// Namespace 非空时同时建立别名并返回别名 id.
	Namespace string
	// Alias 别名名称，为空时使用文件名.
	Alias string
	// Raw 按原样保存，不加密.
	Raw bool
}

// staged 已提交到后端的字节及其派生信息.
type staged struct {
	res     *backend.CommitResult
	size    int64
	mime    string
	charset string
	name    string
	ext     string
}

// Supply 提交字节流，返回对象 id，设置了命名空间时返回别名 id.
func (c *Chest) Supply(ctx context.Context, r io.Reader, opts SupplyOptions) (id string, err error) {
	ctx, span := tracing.StartSpan(ctx, "chest.Supply")
	defer func() { tracing.EndSpan(span, err) }()

	if err := c.ensureReady(); err != nil {
		return "", err
	}

	if err := c.checkNamespace(opts.Namespace, true); err != nil {
		return "", err
	}

	var expected string

	if opts.RelatedObjectID != "" {
		expected, err = model.ParseObjectID(opts.RelatedObjectID)
		if err != nil {
			return "", err
		}

		unlock, err := c.related.Lock(ctx, opts.RelatedObjectID)
		if err != nil {
			return "", err
		}
		defer unlock()

		ok, err := c.backend.Exists(ctx, expected)
		if err != nil {
			return "", err
		}

		if ok {
			c.log.Debug().Str("object_id", opts.RelatedObjectID).Msg("related object already present")

			return opts.RelatedObjectID, nil
		}
	}

	s, err := c.stage(ctx, r, opts, expected)
	if err != nil {
		return "", err
	}

	objectID := model.ObjectID(s.res.Hash)

	rec, aliasID, err := c.upsert(ctx, objectID, s, opts)
	if err != nil {
		if !s.res.Deduped {
			if derr := c.backend.Delete(ctx, s.res.Hash); derr != nil {
				c.log.Warn().Err(derr).Str("object_id", objectID).Msg("remove orphaned bytes failed")
			}
		}

		return "", err
	}

	c.log.Info().Str("object_id", objectID).Str("name", rec.Name).Int64("generation", rec.Generation).
		Bool("deduped", s.res.Deduped).Msg("object supplied")

	c.emit(queue.TopicObjectStored, func() error {
		return queue.PublishObjectStored(c.pub, queue.ObjectStoredPayload{
			Object:     c.ref(rec),
			FileName:   rec.FileName(),
			Generation: rec.Generation,
			Encrypted:  rec.Encryption != nil,
			Deduped:    s.res.Deduped,
			AliasID:    aliasID,
		})
	})

	if aliasID != "" {
		return aliasID, nil
	}

	return objectID, nil
}

// stage 写入暂存文件、识别类型并提交到后端.
func (c *Chest) stage(ctx context.Context, r io.Reader, opts SupplyOptions, expected string) (*staged, error) {
	st, err := c.backend.OpenStaging(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := st.ReadFrom(r); err != nil {
		c.backend.Discard(st)

		return nil, err
	}

	mimeType, charset := sniff(st.Path)

	name := SanitizeName(opts.FileName)
	if name == "" {
		name = st.Name
	}

	s := &staged{
		size:    st.Size(),
		mime:    mimeType,
		charset: charset,
		name:    name,
		ext:     DeriveExtension(opts.Extension, name, mimeType),
	}

	commitOpts := backend.CommitOptions{ExpectedHash: expected}
	if !opts.Raw && expected == "" {
		commitOpts.RecipientCert = opts.RecipientCert
	}

	s.res, err = c.backend.Commit(ctx, st, commitOpts)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// upsert 在名称锁和事务内分配代数并保存记录与别名.
func (c *Chest) upsert(ctx context.Context, objectID string, s *staged, opts SupplyOptions) (*model.ObjectRecord, string, error) {
	existing, err := c.meta.GetObject(ctx, objectID)
	if err != nil && !errors.Is(err, meta.ErrNotFound) {
		return nil, "", err
	}

	keep := existing != nil && opts.RelatedObjectID != ""

	name := s.name
	if keep {
		name = existing.Name
	}

	unlock, err := c.names.Lock(ctx, name)
	if err != nil {
		return nil, "", err
	}
	defer unlock()

	var (
		rec     *model.ObjectRecord
		aliasID string
	)

	err = c.meta.Transaction(ctx, func(tx meta.Store) error {
		gen, err := tx.MaxGeneration(ctx, name)
		if err != nil {
			return fmt.Errorf("next generation of %q: %w", name, err)
		}

		rec = c.buildRecord(objectID, s, opts, existing, keep)
		rec.Name = name
		rec.Generation = gen + 1

		if err := tx.SaveObject(ctx, rec); err != nil {
			return fmt.Errorf("save object %s: %w", objectID, err)
		}

		if opts.Namespace == "" {
			return nil
		}

		aliasName := opts.Alias
		if aliasName == "" {
			aliasName = rec.Name
		}

		alias, err := setAlias(ctx, tx, opts.Namespace, aliasName, objectID)
		if err != nil {
			return err
		}

		aliasID = alias.ID

		return nil
	})
	if err != nil {
		return nil, "", err
	}

	return rec, aliasID, nil
}

func (c *Chest) buildRecord(objectID string, s *staged, opts SupplyOptions, existing *model.ObjectRecord, keep bool) *model.ObjectRecord {
	rec := &model.ObjectRecord{}
	if existing != nil {
		*rec = *existing
	}

	rec.ID = objectID
	rec.Hash = s.res.Hash
	rec.Size = s.size
	rec.Link = model.LinkLinked
	rec.Status = model.StatusPublished

	if keep {
		// 回传的是已加密字节时嗅探结果没有意义
		if rec.Encryption == nil {
			rec.Mime, rec.Charset = s.mime, s.charset
		}

		return rec
	}

	rec.Ext = s.ext
	rec.Mime, rec.Charset = s.mime, s.charset

	switch {
	case s.res.Encryption != nil:
		rec.Encryption = s.res.Encryption
	case opts.Encryption != nil && existing == nil:
		rec.Encryption = opts.Encryption
	}

	return rec
}

// ref 事件中引用的对象信息.
func (c *Chest) ref(rec *model.ObjectRecord) queue.ObjectRef {
	return queue.ObjectRef{
		ObjectID: rec.ID,
		Hash:     rec.Hash,
		Size:     rec.Size,
		Mime:     rec.Mime,
		Location: c.backend.Location(rec.Hash),
	}
}

// emit 发布事件，失败只记录日志.
func (c *Chest) emit(topic string, publish func() error) {
	if c.pub == nil || !c.eventEnabled(topic) {
		return
	}

	if err := publish(); err != nil {
		c.log.Warn().Err(err).Msg("publish event failed")
	}
}

// eventEnabled 判断主题是否允许发布.
func (c *Chest) eventEnabled(topic string) bool {
	return queue.Enabled(c.events, topic)
}

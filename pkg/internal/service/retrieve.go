package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/model"
	"github.com/yeisme/chest/pkg/tracing"
)

// Retrieved 读取结果，调用方负责关闭 Stream.
type Retrieved struct {
	Stream   io.ReadCloser
	FileName string
	Record   *model.ObjectRecord
}

// Retrieve 打开对象.
// 本地缺少字节时：副本角色先执行有限次协商，客户端角色广播缺失请求后返回 NotFound.
// 未提供私钥时返回原始存储字节.
func (c *Chest) Retrieve(ctx context.Context, id string, privateKey []byte) (_ *Retrieved, err error) {
	ctx, span := tracing.StartSpan(ctx, "chest.Retrieve")
	defer func() { tracing.EndSpan(span, err) }()

	if err := c.ensureReady(); err != nil {
		return nil, err
	}

	objectID, hash, err := c.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := c.backend.Exists(ctx, hash)
	if err != nil {
		return nil, err
	}

	if !ok {
		if c.Role() == configs.RoleClient {
			c.requestMissing(objectID, 0, sourceClient)

			return nil, fmt.Errorf("%w: %s is not known by the chest", backend.ErrNotFound, objectID)
		}

		if err := c.negotiate(ctx, objectID, hash); err != nil {
			return nil, err
		}
	}

	rec, err := c.meta.GetObject(ctx, objectID)
	if err != nil {
		return nil, c.notFound(err, objectID)
	}

	stream, err := c.backend.Open(ctx, hash, rec.Encryption, privateKey)
	if err != nil {
		return nil, err
	}

	return &Retrieved{Stream: stream, FileName: rec.FileName(), Record: rec}, nil
}

// Location 对象在本地的确定性位置，与元数据和是否存在无关.
func (c *Chest) Location(ctx context.Context, id string) (string, error) {
	if err := c.ensureReady(); err != nil {
		return "", err
	}

	_, hash, err := c.resolveID(ctx, id)
	if err != nil {
		return "", err
	}

	return c.backend.Location(hash), nil
}

// LocationWithFallback 返回本地位置，本地缺少时先取回字节.
// 客户端角色从副本拉取原始字节并校验哈希，副本角色执行有限次协商.
// 同一对象的并发调用合并为一次.
func (c *Chest) LocationWithFallback(ctx context.Context, id string) (_ string, err error) {
	ctx, span := tracing.StartSpan(ctx, "chest.LocationWithFallback")
	defer func() { tracing.EndSpan(span, err) }()

	if err := c.ensureReady(); err != nil {
		return "", err
	}

	objectID, hash, err := c.resolveID(ctx, id)
	if err != nil {
		return "", err
	}

	ok, err := c.backend.Exists(ctx, hash)
	if err != nil {
		return "", err
	}

	if ok {
		return c.backend.Location(hash), nil
	}

	v, err, _ := c.flight.Do("fallback:"+objectID, func() (any, error) {
		if c.Role() == configs.RoleClient {
			return c.fetchFromServer(ctx, objectID, hash)
		}

		if err := c.negotiate(ctx, objectID, hash); err != nil {
			return "", err
		}

		return c.backend.Location(hash), nil
	})
	if err != nil {
		return "", err
	}

	loc, _ := v.(string)

	return loc, nil
}

// fetchFromServer 从副本拉取原始字节，缺少本地记录时一并保存副本的记录.
func (c *Chest) fetchFromServer(ctx context.Context, objectID, hash string) (string, error) {
	if c.remote == nil {
		return "", ErrNoRemote
	}

	rc, err := c.remote.Fetch(ctx, objectID)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	st, err := c.backend.OpenStaging(ctx)
	if err != nil {
		return "", err
	}

	if _, err := st.ReadFrom(rc); err != nil {
		c.backend.Discard(st)

		return "", err
	}

	res, err := c.backend.Commit(ctx, st, backend.CommitOptions{ExpectedHash: hash})
	if err != nil {
		return "", err
	}

	if err := c.adoptRemoteRecord(ctx, objectID); err != nil {
		c.log.Warn().Err(err).Str("object_id", objectID).Msg("copy record from replica failed")
	}

	c.log.Info().Str("object_id", objectID).Int64("size", res.Size).Msg("object fetched from replica")

	return c.backend.Location(hash), nil
}

// adoptRemoteRecord 本地没有记录时复制副本上的记录，避免回收任务删除刚拉取的字节.
func (c *Chest) adoptRemoteRecord(ctx context.Context, objectID string) error {
	_, err := c.meta.GetObject(ctx, objectID)
	if err == nil || !errors.Is(err, meta.ErrNotFound) {
		return err
	}

	rec, err := c.remote.Record(ctx, objectID)
	if err != nil {
		return err
	}

	rec.Link = model.LinkLinked

	return c.meta.SaveObject(ctx, rec)
}

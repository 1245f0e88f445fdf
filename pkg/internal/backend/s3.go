package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	minio "github.com/minio/minio-go/v7"

	s3c "github.com/yeisme/chest/pkg/internal/storage/s3"
)

func init() {
	registerDriver("s3", newS3Driver)
}

// s3Driver 将对象保存在 bucket 的 <prefix>/<前两位>/<其余> 下，本地根目录只用于暂存.
type s3Driver struct {
	cli    *s3c.Client
	prefix string
}

func newS3Driver(opts Options) (driver, error) {
	if opts.S3 == nil {
		return nil, errors.New("s3 backend requires an s3 client")
	}

	if opts.Root == "" {
		return nil, errors.New("s3 backend requires a local location for staging")
	}

	return &s3Driver{cli: opts.S3, prefix: strings.Trim(opts.S3Prefix, "/")}, nil
}

func (d *s3Driver) key(hash string) string {
	return path.Join(d.prefix, hash[:2], hash[2:])
}

func (d *s3Driver) init(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	prefix := d.prefix
	if prefix != "" {
		prefix += "/"
	}

	for obj := range d.cli.ListObjects(ctx, d.cli.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}

		rel := strings.TrimPrefix(obj.Key, prefix)

		hash := strings.ReplaceAll(rel, "/", "")
		if !ValidHash(hash) {
			continue
		}

		entries = append(entries, Entry{Hash: hash, Size: obj.Size, Atime: obj.LastModified})
	}

	return entries, nil
}

func (d *s3Driver) put(ctx context.Context, hash, stagedPath string, size int64) (bool, error) {
	ok, err := d.exists(ctx, hash)
	if err != nil {
		return false, err
	}

	if ok {
		return true, nil
	}

	_, err = d.cli.FPutObject(ctx, d.cli.Bucket, d.key(hash), stagedPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		PartSize:    d.cli.PartSize,
	})
	if err != nil {
		return false, fmt.Errorf("upload %s (%d bytes): %w", hash, size, err)
	}

	_ = os.Remove(stagedPath)

	return false, nil
}

func (d *s3Driver) open(ctx context.Context, hash string) (io.ReadCloser, error) {
	obj, err := d.cli.GetObject(ctx, d.cli.Bucket, d.key(hash), minio.GetObjectOptions{})
	if err != nil {
		return nil, d.wrap(hash, err)
	}

	// GetObject 不会立即发请求，Stat 用于提前暴露不存在的错误
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()

		return nil, d.wrap(hash, err)
	}

	return obj, nil
}

func (d *s3Driver) exists(ctx context.Context, hash string) (bool, error) {
	_, err := d.cli.StatObject(ctx, d.cli.Bucket, d.key(hash), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	if isNoSuchKey(err) {
		return false, nil
	}

	return false, err
}

func (d *s3Driver) remove(ctx context.Context, hash string) error {
	err := d.cli.RemoveObject(ctx, d.cli.Bucket, d.key(hash), minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return err
	}

	return nil
}

func (d *s3Driver) location(hash string) string {
	if len(hash) < 3 {
		return "s3://" + path.Join(d.cli.Bucket, d.prefix, hash)
	}

	return "s3://" + path.Join(d.cli.Bucket, d.key(hash))
}

func (d *s3Driver) close() error { return nil }

func (d *s3Driver) wrap(hash string, err error) error {
	if isNoSuchKey(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}

	return err
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code

	return code == "NoSuchKey" || code == "NotFoundObject"
}

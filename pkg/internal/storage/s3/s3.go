// Package s3 连接 S3 兼容对象存储，供 s3 后端驱动使用.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/chest/pkg/configs"
	nlog "github.com/yeisme/chest/pkg/log"
)

// Client 绑定了目标桶的 MinIO 客户端.
type Client struct {
	*minio.Client

	Bucket   string
	PartSize uint64
}

// ErrBucketMissing 桶不存在且未开启自动创建.
var ErrBucketMissing = errors.New("s3 bucket does not exist")

// New 连接存储并确认桶可用.
func New(ctx context.Context, cfg *configs.S3Config) (*Client, error) {
	host, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	cli, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("chest", configs.AppVersion)

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := ensureBucket(ctx, cli, cfg); err != nil {
		return nil, err
	}

	l := nlog.Component("s3")
	l.Info().
		Str("endpoint", host).
		Bool("tls", secure).
		Str("bucket", cfg.BucketName).
		Msg("s3 connected")

	return &Client{Client: cli, Bucket: cfg.BucketName, PartSize: cfg.PartSize}, nil
}

func ensureBucket(ctx context.Context, cli *minio.Client, cfg *configs.S3Config) error {
	exists, err := cli.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}

	if exists {
		return nil
	}

	if !cfg.CreateBucket {
		return fmt.Errorf("%w: %s", ErrBucketMissing, cfg.BucketName)
	}

	if err := cli.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		// 并发启动的节点可能已抢先创建
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" {
			return nil
		}

		return fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
	}

	l := nlog.Component("s3")
	l.Info().Str("bucket", cfg.BucketName).Msg("bucket created")

	return nil
}

// splitEndpoint 去掉 scheme，scheme 存在时覆盖 useSSL.
func splitEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), useSSL, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", false, fmt.Errorf("invalid s3 endpoint %q", endpoint)
	}

	switch u.Scheme {
	case "https":
		return u.Host, true, nil
	case "http":
		return u.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported s3 endpoint scheme %q", u.Scheme)
	}
}

// Close minio 客户端无需释放.
func (c *Client) Close() error {
	return nil
}

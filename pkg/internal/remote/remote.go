// Package remote 实现客户端节点访问副本的 HTTP 传输.
// 请求经过限流和熔断，网络失败与 5xx 统一表现为 ErrServerUnreachable.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/model"
	nlog "github.com/yeisme/chest/pkg/log"
	"github.com/yeisme/chest/pkg/tracing"
)

// 原始字节回传时携带的请求头.
const (
	HeaderFileName   = "X-Chest-Name"
	HeaderExtension  = "X-Chest-Ext"
	HeaderEncryption = "X-Chest-Encryption"
)

// APIPrefix 对象接口的路径前缀.
const APIPrefix = "/api/v1/chest"

var (
	// ErrServerUnreachable 副本不可达或返回 5xx，客户端扫描遇到时中止.
	ErrServerUnreachable = errors.New("replica unreachable")
	// ErrRejected 副本拒绝了请求（4xx，404 除外）.
	ErrRejected = errors.New("request rejected by replica")
	// ErrNoServerURL 未配置副本地址.
	ErrNoServerURL = errors.New("server url is empty")
)

// Client 副本的 HTTP 客户端.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// Option Client 构造选项.
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New 创建副本客户端.
func New(serverURL string, cfg configs.RemoteConfig, cb configs.CircuitBreakerConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(serverURL) == "" {
		return nil, ErrNoServerURL
	}

	base, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = configs.DefaultRemoteTimeout
	}

	c := &Client{
		base: base,
		http: &http.Client{Transport: newTransport(timeout)},
		log:  nlog.Component("remote"),
	}

	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}

		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	if cb.Enabled {
		settings := cb.Settings("chest-remote")
		// 只有不可达才计入失败
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !errors.Is(err, ErrServerUnreachable)
		}
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		}

		c.breaker = gobreaker.NewCircuitBreaker(settings)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// newTransport 超时只约束建连与等待响应头，响应体的读取由调用方的 ctx 控制.
func newTransport(timeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = timeout
	t.ResponseHeaderTimeout = timeout

	return t
}

// Fetch 读取副本上对象的原始存储字节，调用方负责关闭.
func (c *Client) Fetch(ctx context.Context, objectID string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, c.objectURL(objectID, ""), nil, nil)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// Record 读取副本上的对象记录.
func (c *Client) Record(ctx context.Context, objectID string) (*model.ObjectRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, c.objectURL(objectID, "meta"), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rec model.ObjectRecord
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record of %s: %w", objectID, err)
	}

	return &rec, nil
}

// Supply 把原始字节回传给副本.
func (c *Client) Supply(ctx context.Context, objectID string, r io.Reader, rec *model.ObjectRecord) error {
	header := http.Header{}
	header.Set("Content-Type", "application/octet-stream")

	if rec != nil {
		header.Set(HeaderFileName, url.PathEscape(rec.Name))
		header.Set(HeaderExtension, rec.Ext)

		if rec.Encryption != nil {
			enc, err := sonic.MarshalString(rec.Encryption)
			if err != nil {
				return err
			}

			header.Set(HeaderEncryption, enc)
		}
	}

	resp, err := c.do(ctx, http.MethodPut, c.objectURL(objectID, "raw"), r, header)
	if err != nil {
		return err
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.Body.Close()
}

func (c *Client) objectURL(objectID, suffix string) string {
	u := *c.base
	u.Path += APIPrefix + "/objects/" + objectID

	if suffix != "" {
		u.Path += "/" + suffix
	}

	return u.String()
}

// do 执行请求，成功时返回 2xx 响应，其余状态转换为错误.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader, header http.Header) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	call := func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, err
		}

		for k, v := range header {
			req.Header[k] = v
		}

		tracing.Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, fmt.Errorf("%w: %s %s: %v", ErrServerUnreachable, method, target, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		defer resp.Body.Close()

		return nil, statusError(resp, method, target)
	}

	var (
		v   any
		err error
	)

	if c.breaker != nil {
		v, err = c.breaker.Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrServerUnreachable, err)
		}
	} else {
		v, err = call()
	}

	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("url", target).Msg("replica request failed")

		return nil, err
	}

	resp, _ := v.(*http.Response)

	return resp, nil
}

// statusError 把非 2xx 响应转换为错误，优先使用响应体中的 error 字段.
func statusError(resp *http.Response, method, target string) error {
	var body struct {
		Error string `json:"error"`
	}

	msg := resp.Status

	const maxErrorBody = 64 * 1024

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := sonic.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s: %s", backend.ErrNotFound, method, target, msg)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s %s: %s", ErrServerUnreachable, method, target, msg)
	default:
		return fmt.Errorf("%w: %s %s: %s", ErrRejected, method, target, msg)
	}
}

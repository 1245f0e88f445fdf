// Package backend 实现内容寻址的对象存储.
//
// 对象以存储字节（可能已加密）的 SHA-256 标识，按 objects/<前两位>/<其余> 分片存放.
// 写入先落在 temp/ 下的暂存文件，计算哈希后原子移动到最终位置，目标已存在即视为去重成功.
// 可选地先压缩再以 AES-CBC 加密，对称密钥与 IV 用接收方 RSA 公钥 OAEP 封装.
// 索引按访问时间维护总字节数，超出容量时淘汰最旧的对象.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/yeisme/chest/pkg/configs"
	s3c "github.com/yeisme/chest/pkg/internal/storage/s3"
	nlog "github.com/yeisme/chest/pkg/log"
	"github.com/yeisme/chest/pkg/metrics"
	"github.com/yeisme/chest/pkg/rule"
)

// Backend 对象存储能力.
type Backend interface {
	// Name 后端名称.
	Name() string
	// OpenStaging 创建暂存文件.
	OpenStaging(ctx context.Context) (*Staging, error)
	// Commit 提交暂存文件，可选加密，返回哈希.
	Commit(ctx context.Context, st *Staging, opts CommitOptions) (*CommitResult, error)
	// Discard 丢弃暂存文件.
	Discard(st *Staging)
	// Open 打开对象，enc 与 privateKey 同时给出时返回解密后的明文流.
	Open(ctx context.Context, hash string, enc *Encryption, privateKey []byte) (io.ReadCloser, error)
	// Exists 判断对象字节是否存在.
	Exists(ctx context.Context, hash string) (bool, error)
	// Location 对象的确定性位置，与是否存在无关.
	Location(hash string) string
	// HashFromLocation 从位置的最后两段还原哈希.
	HashFromLocation(loc string) (string, error)
	// Delete 删除对象字节，不存在时不报错.
	Delete(ctx context.Context, hash string) error
	// Enumerate 按访问时间升序遍历已存对象的哈希.
	Enumerate(ctx context.Context) iter.Seq[string]
	// SetCapacity 调整容量并立即执行一次淘汰，0 表示不限制.
	SetCapacity(maxSize int64)
	// Stats 容量统计.
	Stats() Stats
	// Ready 是否已完成初始化.
	Ready() bool
	// Close 释放资源.
	Close() error
}

// CommitOptions 提交参数.
type CommitOptions struct {
	// RecipientCert 接收方证书或公钥 PEM，为空则不加密.
	RecipientCert []byte
	// Cipher 覆盖默认加密算法.
	Cipher string
	// Compress 覆盖默认压缩算法.
	Compress string
	// ExpectedHash 非空时要求最终字节的哈希与之一致.
	ExpectedHash string
}

// CommitResult 提交结果.
type CommitResult struct {
	Hash       string
	Size       int64
	Deduped    bool
	Encryption *Encryption
}

// Options 后端构造参数.
type Options struct {
	Driver   string // fs | s3
	Root     string // 本地根目录，s3 后端仅用于暂存
	MaxSize  int64
	Cipher   string
	Compress string

	S3       *s3c.Client
	S3Prefix string
}

// OptionsFromConfig 从配置构造后端参数.
func OptionsFromConfig(cfg *configs.ChestConfig, s3 *s3c.Client) Options {
	return Options{
		Driver:   cfg.Backend,
		Root:     cfg.FS.Location,
		MaxSize:  cfg.FS.MaxSize,
		Cipher:   cfg.FS.Cipher,
		Compress: cfg.FS.Compress,
		S3:       s3,
		S3Prefix: cfg.S3.Prefix,
	}
}

// driver 管理已提交对象的物理存放位置.
type driver interface {
	// init 准备存储区域并返回已有对象.
	init(ctx context.Context) ([]Entry, error)
	// put 将暂存文件放到哈希对应的位置，目标已存在时返回 deduped=true.
	put(ctx context.Context, hash, stagedPath string, size int64) (deduped bool, err error)
	open(ctx context.Context, hash string) (io.ReadCloser, error)
	exists(ctx context.Context, hash string) (bool, error)
	remove(ctx context.Context, hash string) error
	location(hash string) string
	close() error
}

// driverFactory 创建 driver 的工厂函数.
type driverFactory func(opts Options) (driver, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]driverFactory{}
)

// registerDriver 注册 driver 工厂.
func registerDriver(name string, f driverFactory) {
	driversMu.Lock()
	drivers[name] = f
	driversMu.Unlock()
}

// Drivers 返回已注册的后端名称.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// ValidHash 判断是否为 64 位小写十六进制 SHA-256.
func ValidHash(h string) bool {
	return rule.ValidateVar(h, "chest_hash") == nil
}

// Store 基于 driver 的 Backend 实现.
type Store struct {
	name     string
	drv      driver
	stage    *stagingArea
	index    *Index
	cipher   string
	compress string
	ready    atomic.Bool
	log      zerolog.Logger
}

var _ Backend = (*Store)(nil)

// New 按 Options 构造并初始化后端：重建暂存目录、扫描已有对象并执行一次淘汰.
// 未注册的 driver 返回 ErrUnknownBackend.
func New(ctx context.Context, opts Options) (*Store, error) {
	driversMu.RLock()
	factory, ok := drivers[opts.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Driver)
	}

	if opts.Cipher == "" {
		opts.Cipher = configs.DefaultChestCipher
	}

	if _, err := cipherKeySize(opts.Cipher); err != nil {
		return nil, err
	}

	if !ValidCompress(opts.Compress) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompress, opts.Compress)
	}

	drv, err := factory(opts)
	if err != nil {
		return nil, err
	}

	s := &Store{
		name:     opts.Driver,
		drv:      drv,
		stage:    &stagingArea{dir: stagingDir(opts.Root)},
		index:    NewIndex(opts.MaxSize),
		cipher:   opts.Cipher,
		compress: opts.Compress,
		log:      nlog.Component("backend").With().Str("driver", opts.Driver).Logger(),
	}

	if err := s.initialize(ctx); err != nil {
		_ = drv.close()

		return nil, err
	}

	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	if err := s.stage.reset(); err != nil {
		return err
	}

	entries, err := s.drv.init(ctx)
	if err != nil {
		return fmt.Errorf("scan objects: %w", err)
	}

	s.index.Load(entries)
	s.evict(ctx)
	s.ready.Store(true)

	st := s.index.Stats()
	s.log.Info().Int("objects", st.Count).Int64("total_size", st.TotalSize).Int64("max_size", st.MaxSize).
		Msg("object store initialized")

	return nil
}

// stagingDir 暂存目录.
func stagingDir(root string) string {
	return filepath.Join(root, "temp")
}

// Name 后端名称.
func (s *Store) Name() string { return s.name }

// Ready 是否已完成初始化.
func (s *Store) Ready() bool { return s.ready.Load() }

// OpenStaging 创建暂存文件.
func (s *Store) OpenStaging(_ context.Context) (*Staging, error) {
	if !s.Ready() {
		return nil, ErrNotInitialized
	}

	return s.stage.create()
}

// Discard 丢弃暂存文件.
func (s *Store) Discard(st *Staging) {
	s.stage.discard(st)
}

// Commit 提交暂存文件.
// 提供 RecipientCert 时先压缩再加密到新的暂存文件，明文暂存文件随即删除.
// 最终字节的哈希决定存放位置，目标已存在时丢弃暂存文件并返回 Deduped.
func (s *Store) Commit(ctx context.Context, st *Staging, opts CommitOptions) (*CommitResult, error) {
	if !s.Ready() {
		s.stage.discard(st)

		return nil, ErrNotInitialized
	}

	if err := st.close(); err != nil {
		s.stage.discard(st)

		return nil, &StreamError{Op: "stage", Err: err}
	}

	final := st

	var enc *Encryption

	if len(opts.RecipientCert) > 0 {
		sealed, e, err := s.sealStaging(st, opts)
		s.stage.discard(st)

		if err != nil {
			return nil, err
		}

		final, enc = sealed, e
	}

	hash := final.Sum()
	size := final.Size()

	if opts.ExpectedHash != "" && opts.ExpectedHash != hash {
		s.stage.discard(final)

		return nil, &IntegrityError{Expected: opts.ExpectedHash, Actual: hash}
	}

	deduped, err := s.drv.put(ctx, hash, final.Path, size)
	if err != nil {
		s.stage.discard(final)

		return nil, fmt.Errorf("place object %s: %w", hash, err)
	}

	if deduped {
		s.stage.discard(final)
		metrics.ObjectsCommitted.WithLabelValues("dedup").Inc()
	} else {
		s.index.Add(hash, size, time.Now())
		metrics.ObjectsCommitted.WithLabelValues("new").Inc()
	}

	s.evict(ctx)

	return &CommitResult{Hash: hash, Size: size, Deduped: deduped, Encryption: enc}, nil
}

// sealStaging 把明文暂存文件压缩加密到新的暂存文件.
func (s *Store) sealStaging(st *Staging, opts CommitOptions) (*Staging, *Encryption, error) {
	cipherName := opts.Cipher
	if cipherName == "" {
		cipherName = s.cipher
	}

	compress := opts.Compress
	if compress == "" {
		compress = s.compress
	}

	src, err := os.Open(st.Path)
	if err != nil {
		return nil, nil, &StreamError{Op: "encrypt", Err: err}
	}
	defer src.Close()

	out, err := s.stage.create()
	if err != nil {
		return nil, nil, err
	}

	enc, err := seal(out, src, opts.RecipientCert, cipherName, compress)
	if cerr := out.close(); err == nil && cerr != nil {
		err = &StreamError{Op: "encrypt", Err: cerr}
	}

	if err != nil {
		s.stage.discard(out)

		return nil, nil, err
	}

	return out, enc, nil
}

// evict 淘汰超出容量的最旧对象.
func (s *Store) evict(ctx context.Context) {
	for _, victim := range s.index.TakeOverBudget() {
		if err := s.drv.remove(ctx, victim.Hash); err != nil {
			s.log.Warn().Err(err).Str("hash", victim.Hash).Msg("evict object failed")

			continue
		}

		metrics.ObjectsEvicted.Inc()
		s.log.Debug().Str("hash", victim.Hash).Int64("size", victim.Size).Msg("object evicted")
	}

	st := s.index.Stats()
	metrics.StoreBytes.WithLabelValues("total").Set(float64(st.TotalSize))
	metrics.StoreBytes.WithLabelValues("max").Set(float64(st.MaxSize))
}

// Open 打开对象.
func (s *Store) Open(ctx context.Context, hash string, enc *Encryption, privateKey []byte) (io.ReadCloser, error) {
	if !s.Ready() {
		return nil, ErrNotInitialized
	}

	if !ValidHash(hash) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}

	raw, err := s.drv.open(ctx, hash)
	if err != nil {
		return nil, err
	}

	if enc == nil || len(privateKey) == 0 {
		return raw, nil
	}

	plain, err := unseal(raw, enc, privateKey)
	if err != nil {
		_ = raw.Close()

		return nil, err
	}

	return &stackedReadCloser{Reader: plain, closers: []io.Closer{plain, raw}}, nil
}

// Exists 判断对象字节是否存在.
func (s *Store) Exists(ctx context.Context, hash string) (bool, error) {
	if !s.Ready() {
		return false, ErrNotInitialized
	}

	if !ValidHash(hash) {
		return false, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}

	return s.drv.exists(ctx, hash)
}

// Location 对象的确定性位置.
func (s *Store) Location(hash string) string {
	return s.drv.location(hash)
}

// HashFromLocation 从位置的最后两段还原哈希，兼容本地路径与 s3:// 地址.
func (s *Store) HashFromLocation(loc string) (string, error) {
	parts := strings.FieldsFunc(loc, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, loc)
	}

	hash := parts[len(parts)-2] + parts[len(parts)-1]
	if !ValidHash(hash) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, loc)
	}

	return hash, nil
}

// Delete 删除对象字节.
func (s *Store) Delete(ctx context.Context, hash string) error {
	if !s.Ready() {
		return ErrNotInitialized
	}

	if !ValidHash(hash) {
		return fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}

	if err := s.drv.remove(ctx, hash); err != nil {
		return err
	}

	s.index.Remove(hash)

	return nil
}

// Enumerate 按访问时间升序遍历已存对象的哈希，遍历开始时对索引取快照.
func (s *Store) Enumerate(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, h := range s.index.Snapshot() {
			if ctx.Err() != nil {
				return
			}

			if !yield(h) {
				return
			}
		}
	}
}

// SetCapacity 调整容量并执行淘汰.
func (s *Store) SetCapacity(maxSize int64) {
	s.index.SetMaxSize(maxSize)
	s.evict(context.Background())
	s.log.Info().Int64("max_size", maxSize).Msg("capacity updated")
}

// Stats 容量统计.
func (s *Store) Stats() Stats {
	return s.index.Stats()
}

// Close 释放资源.
func (s *Store) Close() error {
	s.ready.Store(false)

	return s.drv.close()
}

// stackedReadCloser 依次关闭多层流.
type stackedReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *stackedReadCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}

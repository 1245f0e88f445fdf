package backend

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid"
)

// Staging 暂存文件，写入时同步计算 SHA-256.
type Staging struct {
	Name string // 唯一文件名，也用作缺省文件名
	Path string

	f      *os.File
	h      hash.Hash
	w      io.Writer
	size   int64
	closed bool
}

// Write 写入暂存文件并更新哈希.
func (s *Staging) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.size += int64(n)

	return n, err
}

// ReadFrom 从 r 读取全部内容.
func (s *Staging) ReadFrom(r io.Reader) (int64, error) {
	n, err := io.CopyBuffer(struct{ io.Writer }{s}, r, make([]byte, copyChunkSize))
	if err != nil {
		return n, &StreamError{Op: "stage", Err: err}
	}

	return n, nil
}

// Size 已写入的字节数.
func (s *Staging) Size() int64 {
	return s.size
}

// Sum 已写入内容的十六进制 SHA-256.
func (s *Staging) Sum() string {
	return hex.EncodeToString(s.h.Sum(nil))
}

// close 关闭文件句柄，可重复调用.
func (s *Staging) close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	return s.f.Close()
}

// stagingArea 管理 <root>/temp 下的暂存文件.
type stagingArea struct {
	dir string
}

// reset 清空并重建暂存目录，上次进程遗留的文件全部丢弃.
func (a *stagingArea) reset() error {
	if err := os.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("purge staging dir: %w", err)
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	return nil
}

// create 创建一个新的暂存文件.
func (a *stagingArea) create() (*Staging, error) {
	name := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	path := filepath.Join(a.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &StreamError{Op: "stage", Err: err}
	}

	h := sha256.New()

	return &Staging{Name: name, Path: path, f: f, h: h, w: io.MultiWriter(f, h)}, nil
}

// discard 关闭并删除暂存文件，忽略错误.
func (a *stagingArea) discard(s *Staging) {
	if s == nil {
		return
	}

	_ = s.close()
	_ = os.Remove(s.Path)
}

package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 对象字节或记录不存在.
	ErrNotFound = errors.New("object not found")
	// ErrNotInitialized 后端尚未完成初始化，调用方可以稍后重试.
	ErrNotInitialized = errors.New("object store not initialized")
	// ErrUnknownBackend 配置了未注册的后端名称，属于启动期配置错误.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrInvalidHash 哈希不是 64 位小写十六进制.
	ErrInvalidHash = errors.New("invalid content hash")
	// ErrUnsupportedCipher 不支持的加密算法.
	ErrUnsupportedCipher = errors.New("unsupported cipher")
	// ErrUnsupportedCompress 不支持的压缩算法.
	ErrUnsupportedCompress = errors.New("unsupported compression")
	// ErrBadCiphertext 密文长度或填充不合法.
	ErrBadCiphertext = errors.New("malformed ciphertext")
)

// IntegrityError 提交后的哈希与期望值不一致.
type IntegrityError struct {
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed: expected %s, got %s", e.Expected, e.Actual)
}

// StreamError 流读写过程中的 I/O 失败，暂存文件已清理.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s: %v", e.Op, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsNotFound 判断错误是否表示对象不存在.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIntegrity 判断错误是否为完整性校验失败.
func IsIntegrity(err error) bool {
	var ie *IntegrityError

	return errors.As(err, &ie)
}

// IsStream 判断错误是否为流失败.
func IsStream(err error) bool {
	var se *StreamError

	return errors.As(err, &se)
}

package backend

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // OAEP 标签哈希，与现有封装密钥格式保持一致
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Encryption 对象的封装描述，随元数据持久化.
// Key 为 base64(RSA-OAEP(对称密钥 ‖ IV)).
type Encryption struct {
	Cipher   string `json:"cipher"`
	Compress string `json:"compress,omitempty"`
	Key      string `json:"key"`
}

const (
	CompressGzip = "gzip"
	CompressZstd = "zstd"
	CompressLZ4  = "lz4"
	CompressNone = "none"

	ivSize        = aes.BlockSize
	copyChunkSize = 32 * 1024
)

// cipherKeySize 从 "aes-256-cbc" 形式的名称解析密钥字节数.
func cipherKeySize(name string) (int, error) {
	switch strings.ToLower(name) {
	case "aes-128-cbc":
		return 16, nil
	case "aes-192-cbc":
		return 24, nil
	case "aes-256-cbc":
		return 32, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCipher, name)
	}
}

// ValidCompress 判断压缩算法名称是否受支持，空字符串视为 none.
func ValidCompress(name string) bool {
	switch name {
	case "", CompressNone, CompressGzip, CompressZstd, CompressLZ4:
		return true
	default:
		return false
	}
}

// seal 压缩后加密 src 写入 dst，返回封装描述.
func seal(dst io.Writer, src io.Reader, certPEM []byte, cipherName, compress string) (*Encryption, error) {
	keySize, err := cipherKeySize(cipherName)
	if err != nil {
		return nil, err
	}

	pub, err := ParsePublicKey(certPEM)
	if err != nil {
		return nil, err
	}

	material := make([]byte, keySize+ivSize)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	key, iv := material[:keySize], material[keySize:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	enc := newCBCWriter(dst, cipher.NewCBCEncrypter(block, iv))

	comp, err := newCompressor(compress, enc)
	if err != nil {
		return nil, err
	}

	if err := compressInto(comp, src); err != nil {
		return nil, err
	}

	if err := enc.Close(); err != nil {
		return nil, &StreamError{Op: "encrypt", Err: err}
	}

	wrapped, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, material, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}

	if compress == "" {
		compress = CompressNone
	}

	return &Encryption{
		Cipher:   strings.ToLower(cipherName),
		Compress: compress,
		Key:      base64.StdEncoding.EncodeToString(wrapped),
	}, nil
}

// unseal 解开封装密钥并返回解密后解压的流.
func unseal(src io.Reader, enc *Encryption, privateKeyPEM []byte) (io.ReadCloser, error) {
	keySize, err := cipherKeySize(enc.Cipher)
	if err != nil {
		return nil, err
	}

	priv, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	wrapped, err := base64.StdEncoding.DecodeString(enc.Key)
	if err != nil {
		return nil, fmt.Errorf("decode wrapped key: %w", err)
	}

	material, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrap key: %w", err)
	}

	if len(material) != keySize+ivSize {
		return nil, fmt.Errorf("unwrap key: unexpected key material length %d", len(material))
	}

	block, err := aes.NewCipher(material[:keySize])
	if err != nil {
		return nil, err
	}

	plain := newCBCReader(src, cipher.NewCBCDecrypter(block, material[keySize:]))

	return newDecompressor(enc.Compress, plain)
}

// compressInto 把 src 写入压缩器后关闭，复制失败时也关闭以释放 zstd 编码协程.
func compressInto(comp io.WriteCloser, src io.Reader) error {
	if _, err := io.CopyBuffer(comp, src, make([]byte, copyChunkSize)); err != nil {
		_ = comp.Close()

		return &StreamError{Op: "encrypt", Err: err}
	}

	if err := comp.Close(); err != nil {
		return &StreamError{Op: "compress", Err: err}
	}

	return nil
}

// newCompressor 按名称创建压缩写入器.
func newCompressor(name string, w io.Writer) (io.WriteCloser, error) {
	switch name {
	case "", CompressNone:
		return nopWriteCloser{w}, nil
	case CompressGzip:
		return gzip.NewWriter(w), nil
	case CompressZstd:
		return zstd.NewWriter(w)
	case CompressLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompress, name)
	}
}

// newDecompressor 按名称创建解压读取器.
func newDecompressor(name string, r io.Reader) (io.ReadCloser, error) {
	switch name {
	case "", CompressNone:
		return io.NopCloser(r), nil
	case CompressGzip:
		return gzip.NewReader(r)
	case CompressZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}

		return dec.IOReadCloser(), nil
	case CompressLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompress, name)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// cbcWriter 流式 CBC 加密，只加密完整块，Close 时写入 PKCS#7 填充块.
type cbcWriter struct {
	w    io.Writer
	mode cipher.BlockMode
	buf  []byte
}

func newCBCWriter(w io.Writer, mode cipher.BlockMode) *cbcWriter {
	return &cbcWriter{w: w, mode: mode}
}

func (c *cbcWriter) Write(p []byte) (int, error) {
	c.buf = append(c.buf, p...)

	bs := c.mode.BlockSize()
	full := len(c.buf) / bs * bs

	if full > 0 {
		out := make([]byte, full)
		c.mode.CryptBlocks(out, c.buf[:full])

		if _, err := c.w.Write(out); err != nil {
			return 0, err
		}

		c.buf = append(c.buf[:0], c.buf[full:]...)
	}

	return len(p), nil
}

func (c *cbcWriter) Close() error {
	bs := c.mode.BlockSize()
	pad := bs - len(c.buf)%bs

	block := append(c.buf, bytes.Repeat([]byte{byte(pad)}, pad)...)
	out := make([]byte, len(block))
	c.mode.CryptBlocks(out, block)
	c.buf = nil

	_, err := c.w.Write(out)

	return err
}

// cbcReader 流式 CBC 解密，保留最后一个块直到读到 EOF 再去除填充.
type cbcReader struct {
	r       io.Reader
	mode    cipher.BlockMode
	chunk   []byte
	pending []byte
	out     []byte
	done    bool
}

func newCBCReader(r io.Reader, mode cipher.BlockMode) *cbcReader {
	return &cbcReader{r: r, mode: mode, chunk: make([]byte, copyChunkSize)}
}

func (c *cbcReader) Read(p []byte) (int, error) {
	for len(c.out) == 0 {
		if c.done {
			return 0, io.EOF
		}

		if err := c.fill(); err != nil {
			return 0, err
		}
	}

	n := copy(p, c.out)
	c.out = c.out[n:]

	return n, nil
}

func (c *cbcReader) fill() error {
	n, err := c.r.Read(c.chunk)
	c.pending = append(c.pending, c.chunk[:n]...)

	bs := c.mode.BlockSize()

	if err == io.EOF {
		c.done = true

		if len(c.pending) == 0 || len(c.pending)%bs != 0 {
			return ErrBadCiphertext
		}

		plain := make([]byte, len(c.pending))
		c.mode.CryptBlocks(plain, c.pending)
		c.pending = nil

		unpadded, perr := pkcs7Unpad(plain, bs)
		if perr != nil {
			return perr
		}

		c.out = unpadded

		return nil
	}

	if err != nil {
		return err
	}

	full := len(c.pending) / bs * bs
	if full == len(c.pending) {
		full -= bs
	}

	if full <= 0 {
		return nil
	}

	plain := make([]byte, full)
	c.mode.CryptBlocks(plain, c.pending[:full])
	c.pending = append([]byte(nil), c.pending[full:]...)
	c.out = plain

	return nil
}

func pkcs7Unpad(b []byte, bs int) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrBadCiphertext
	}

	pad := int(b[len(b)-1])
	if pad == 0 || pad > bs || pad > len(b) {
		return nil, ErrBadCiphertext
	}

	for _, v := range b[len(b)-pad:] {
		if int(v) != pad {
			return nil, ErrBadCiphertext
		}
	}

	return b[:len(b)-pad], nil
}

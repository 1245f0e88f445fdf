package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const objectsDir = "objects"

func init() {
	registerDriver("fs", newFSDriver)
}

// fsDriver 将对象保存在本地目录 <root>/objects/<前两位>/<其余>.
type fsDriver struct {
	root string
}

func newFSDriver(opts Options) (driver, error) {
	if opts.Root == "" {
		return nil, errors.New("fs backend requires a location")
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve location: %w", err)
	}

	return &fsDriver{root: root}, nil
}

func (d *fsDriver) path(hash string) string {
	return filepath.Join(d.root, objectsDir, hash[:2], hash[2:])
}

func (d *fsDriver) init(ctx context.Context) ([]Entry, error) {
	base := filepath.Join(d.root, objectsDir)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}

	var entries []Entry

	err := filepath.WalkDir(base, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if de.IsDir() {
			return nil
		}

		hash := filepath.Base(filepath.Dir(p)) + de.Name()
		if !ValidHash(hash) {
			return nil
		}

		info, err := de.Info()
		if err != nil {
			return err
		}

		entries = append(entries, Entry{Hash: hash, Size: info.Size(), Atime: fileAtime(info)})

		return nil
	})

	return entries, err
}

func (d *fsDriver) put(_ context.Context, hash, stagedPath string, _ int64) (bool, error) {
	dst := d.path(hash)

	if _, err := os.Stat(dst); err == nil {
		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}

	if err := os.Rename(stagedPath, dst); err != nil {
		return false, err
	}

	return false, nil
}

func (d *fsDriver) open(_ context.Context, hash string) (io.ReadCloser, error) {
	f, err := os.Open(d.path(hash))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}

	return f, err
}

func (d *fsDriver) exists(_ context.Context, hash string) (bool, error) {
	_, err := os.Stat(d.path(hash))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, err
}

func (d *fsDriver) remove(_ context.Context, hash string) error {
	p := d.path(hash)
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	// 分片目录保留，同分片的并发提交可能正要写入
	return nil
}

func (d *fsDriver) location(hash string) string {
	if len(hash) < 3 {
		return filepath.Join(d.root, objectsDir, hash)
	}

	return d.path(hash)
}

func (d *fsDriver) close() error { return nil }

//go:build !linux

package backend

import (
	"os"
	"time"
)

// fileAtime 非 linux 平台使用修改时间近似访问时间.
func fileAtime(info os.FileInfo) time.Time {
	return info.ModTime()
}

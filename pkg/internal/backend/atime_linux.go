//go:build linux

package backend

import (
	"os"
	"syscall"
	"time"
)

// fileAtime 返回文件最后访问时间，取不到时退回修改时间.
func fileAtime(info os.FileInfo) time.Time {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}

	return time.Unix(int64(st.Atim.Sec), int64(st.Atim.Nsec)) //nolint:unconvert // 32 位平台字段为 int32
}

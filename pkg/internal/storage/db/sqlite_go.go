//go:build !no_sqlite && !cgo

package db

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// 纯 Go 驱动以 _pragma 参数设置 WAL 与忙等待，避免协商与回收并发写时报 SQLITE_BUSY.
func init() {
	register("sqlite", driver{
		singleWriter: true,
		open: func(dsn string) gorm.Dialector {
			return sqlite.Open(withParams(dsn, "_pragma=journal_mode(WAL)", "_pragma=busy_timeout(5000)"))
		},
	})
}

//go:build !no_sqlite && cgo

package db

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// cgo 驱动（mattn/go-sqlite3）的参数名与纯 Go 驱动不同.
func init() {
	register("sqlite", driver{
		singleWriter: true,
		open: func(dsn string) gorm.Dialector {
			return sqlite.Open(withParams(dsn, "_journal_mode=WAL", "_busy_timeout=5000"))
		},
	})
}

//go:build !no_mysql

package db

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func init() {
	register("mysql", driver{
		open: func(dsn string) gorm.Dialector {
			// utf8mb4 下索引列最长 191 字符
			return mysql.New(mysql.Config{DSN: dsn, DefaultStringSize: 191})
		},
	})
}

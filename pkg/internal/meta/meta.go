// Package meta 定义对象元数据的存取契约，并提供基于 gorm 的实现.
package meta

import (
	"context"
	"errors"

	"github.com/yeisme/chest/pkg/internal/model"
)

// ErrNotFound 记录不存在.
var ErrNotFound = errors.New("record not found")

// Filter 按字段等值查询，字段名为数据库列名.
type Filter struct {
	Where   map[string]any
	Not     map[string]any
	OrderBy string
	Desc    bool
	Limit   int
}

// Store 元数据存取契约.
type Store interface {
	// GetObject 按 id 读取对象记录，不存在返回 ErrNotFound.
	GetObject(ctx context.Context, id string) (*model.ObjectRecord, error)
	// SaveObject 插入或整体更新对象记录.
	SaveObject(ctx context.Context, rec *model.ObjectRecord) error
	// ObjectPersisted 对象记录是否已持久化.
	ObjectPersisted(ctx context.Context, id string) (bool, error)
	// FindObjects 条件查询对象记录.
	FindObjects(ctx context.Context, f Filter) ([]model.ObjectRecord, error)
	// MaxGeneration 某个逻辑名称当前的最大代数，没有记录时为 0.
	MaxGeneration(ctx context.Context, name string) (int64, error)

	// GetAlias 按 id 读取别名，不存在返回 ErrNotFound.
	GetAlias(ctx context.Context, id string) (*model.AliasRecord, error)
	// SaveAlias 插入或整体更新别名.
	SaveAlias(ctx context.Context, rec *model.AliasRecord) error
	// FindAliases 条件查询别名.
	FindAliases(ctx context.Context, f Filter) ([]model.AliasRecord, error)

	// References 返回 table.column 中包含 marker 的文本值.
	References(ctx context.Context, table, column, marker string) ([]string, error)

	// Transaction 在同一事务中执行 fn，fn 内只能使用传入的 Store.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

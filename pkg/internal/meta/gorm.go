package meta

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/chest/pkg/internal/model"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// GormStore 基于 gorm 的 Store 实现.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore 创建 GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Models 需要迁移的模型.
func Models() []any {
	return []any{&model.ObjectRecord{}, &model.AliasRecord{}}
}

// AutoMigrate 迁移对象与别名表.
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

func (s *GormStore) GetObject(ctx context.Context, id string) (*model.ObjectRecord, error) {
	var rec model.ObjectRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		return nil, wrapNotFound(err, id)
	}

	return &rec, nil
}

func (s *GormStore) SaveObject(ctx context.Context, rec *model.ObjectRecord) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *GormStore) ObjectPersisted(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.ObjectRecord{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}

	return n > 0, nil
}

func (s *GormStore) FindObjects(ctx context.Context, f Filter) ([]model.ObjectRecord, error) {
	var rows []model.ObjectRecord

	q, err := s.apply(ctx, f)
	if err != nil {
		return nil, err
	}

	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *GormStore) MaxGeneration(ctx context.Context, name string) (int64, error) {
	var maxGen int64

	err := s.db.WithContext(ctx).Model(&model.ObjectRecord{}).
		Where("name = ?", name).
		Select("COALESCE(MAX(generation), 0)").
		Scan(&maxGen).Error

	return maxGen, err
}

func (s *GormStore) GetAlias(ctx context.Context, id string) (*model.AliasRecord, error) {
	var rec model.AliasRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		return nil, wrapNotFound(err, id)
	}

	return &rec, nil
}

func (s *GormStore) SaveAlias(ctx context.Context, rec *model.AliasRecord) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *GormStore) FindAliases(ctx context.Context, f Filter) ([]model.AliasRecord, error) {
	var rows []model.AliasRecord

	q, err := s.apply(ctx, f)
	if err != nil {
		return nil, err
	}

	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *GormStore) References(ctx context.Context, table, column, marker string) ([]string, error) {
	if !identPattern.MatchString(table) || !identPattern.MatchString(column) {
		return nil, fmt.Errorf("invalid reference source %s.%s", table, column)
	}

	var values []string

	err := s.db.WithContext(ctx).Table(table).
		Where(clause.Like{Column: clause.Column{Name: column}, Value: "%" + marker + "%"}).
		Pluck(column, &values).Error
	if err != nil {
		return nil, fmt.Errorf("scan %s.%s: %w", table, column, err)
	}

	return values, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// apply 把 Filter 转成查询条件，列名经过校验并由 gorm 负责引用.
func (s *GormStore) apply(ctx context.Context, f Filter) (*gorm.DB, error) {
	q := s.db.WithContext(ctx)

	for col, v := range f.Where {
		if !identPattern.MatchString(col) {
			return nil, fmt.Errorf("invalid filter column %q", col)
		}

		q = q.Where(clause.Eq{Column: clause.Column{Name: col}, Value: v})
	}

	for col, v := range f.Not {
		if !identPattern.MatchString(col) {
			return nil, fmt.Errorf("invalid filter column %q", col)
		}

		q = q.Where(clause.Neq{Column: clause.Column{Name: col}, Value: v})
	}

	if f.OrderBy != "" {
		if !identPattern.MatchString(f.OrderBy) {
			return nil, fmt.Errorf("invalid order column %q", f.OrderBy)
		}

		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: f.OrderBy}, Desc: f.Desc})
	}

	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	return q, nil
}

func wrapNotFound(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return err
}

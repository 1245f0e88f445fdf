package meta_test

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/meta"
	"github.com/yeisme/chest/pkg/internal/model"
)

func newStore(t *testing.T) (*meta.GormStore, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := meta.NewGormStore(db)
	require.NoError(t, s.AutoMigrate(context.Background()))

	return s, db
}

func record(seed, name string, gen int64) *model.ObjectRecord {
	h := strings.Repeat(seed, 64/len(seed))

	return &model.ObjectRecord{
		ID:         model.ObjectID(h),
		Hash:       h,
		Name:       name,
		Ext:        "txt",
		Size:       3,
		Mime:       "text/plain",
		Link:       model.LinkLinked,
		Generation: gen,
		Status:     model.StatusPublished,
	}
}

func TestGormStore_ObjectCRUD(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	rec := record("a1", "notes", 1)
	rec.Encryption = &backend.Encryption{Cipher: "aes-256-cbc", Compress: "gzip", Key: "d3JhcHBlZA=="}
	rec.Metadata = datatypesOf(model.ObjectMetadata{Title: "Notes", Authors: []string{"ann"}})

	_, err := s.GetObject(ctx, rec.ID)
	require.ErrorIs(t, err, meta.ErrNotFound)

	ok, err := s.ObjectPersisted(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveObject(ctx, rec))

	got, err := s.GetObject(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Hash, got.Hash)
	require.NotNil(t, got.Encryption)
	assert.Equal(t, *rec.Encryption, *got.Encryption)
	assert.Equal(t, "Notes", got.Metadata.Data().Title)

	got.Status = model.StatusTrashed
	require.NoError(t, s.SaveObject(ctx, got))

	again, err := s.GetObject(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTrashed, again.Status)

	ok, err = s.ObjectPersisted(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGormStore_MaxGeneration(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	gen, err := s.MaxGeneration(ctx, "notes")
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, s.SaveObject(ctx, record("a1", "notes", 1)))
	require.NoError(t, s.SaveObject(ctx, record("b2", "notes", 2)))
	require.NoError(t, s.SaveObject(ctx, record("c3", "other", 7)))

	gen, err = s.MaxGeneration(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen)
}

func TestGormStore_FindObjects(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	unlinked := record("b2", "b", 1)
	unlinked.Link = model.LinkUnlinked

	require.NoError(t, s.SaveObject(ctx, record("a1", "a", 1)))
	require.NoError(t, s.SaveObject(ctx, unlinked))
	require.NoError(t, s.SaveObject(ctx, record("c3", "c", 3)))

	rows, err := s.FindObjects(ctx, meta.Filter{
		Where:   map[string]any{"status": model.StatusPublished},
		Not:     map[string]any{"link": model.LinkUnlinked},
		OrderBy: "generation",
		Desc:    true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].Name)
	assert.Equal(t, "a", rows[1].Name)

	rows, err = s.FindObjects(ctx, meta.Filter{Limit: 1, OrderBy: "name"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Name)

	_, err = s.FindObjects(ctx, meta.Filter{Where: map[string]any{"1=1; drop": 1}})
	require.Error(t, err)
}

func TestGormStore_Aliases(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	objectID := record("a1", "a", 1).ID

	alias := &model.AliasRecord{
		ID:        model.AliasID("docs", objectID),
		Namespace: "docs",
		Name:      "readme",
		ObjectID:  objectID,
		Status:    model.StatusPublished,
	}
	require.NoError(t, s.SaveAlias(ctx, alias))

	got, err := s.GetAlias(ctx, alias.ID)
	require.NoError(t, err)
	assert.Equal(t, "readme", got.Name)

	rows, err := s.FindAliases(ctx, meta.Filter{Where: map[string]any{"namespace": "docs", "name": "readme"}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = s.GetAlias(ctx, "chestAlias@docs@missing")
	require.ErrorIs(t, err, meta.ErrNotFound)
}

func TestGormStore_TransactionRollback(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	rec := record("a1", "a", 1)

	err := s.Transaction(ctx, func(tx meta.Store) error {
		require.NoError(t, tx.SaveObject(ctx, rec))

		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	ok, err := s.ObjectPersisted(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormStore_References(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()

	type Note struct {
		ID   uint
		Body string
	}

	require.NoError(t, db.AutoMigrate(&Note{}))
	require.NoError(t, db.Create(&[]Note{
		{Body: "see chestObject@" + strings.Repeat("a1", 32)},
		{Body: "plain text"},
	}).Error)

	refs, err := s.References(ctx, "notes", "body", model.ObjectKind+"@")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Contains(t, refs[0], "chestObject@")

	_, err = s.References(ctx, "notes;drop", "body", "x")
	require.Error(t, err)
}

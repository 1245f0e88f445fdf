package replica_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/model"
)

type note struct {
	ID   uint
	Body string
}

func orphanNode(t *testing.T, retention int64) *node {
	t.Helper()

	n := newNode(t, "a", newPubSub(t), nodeOptions{tune: func(cfg *configs.ChestConfig) {
		cfg.Orphans.RetentionBytes = retention
		cfg.Orphans.Sources = []configs.OrphanSource{{Table: "notes", Column: "body"}}
	}})
	require.NoError(t, n.db.AutoMigrate(&note{}))

	return n
}

// age 把对象的创建时间设置为 d 之前.
func age(t *testing.T, n *node, id string, d time.Duration) {
	t.Helper()

	ctx := context.Background()

	rec, err := n.store.GetObject(ctx, id)
	require.NoError(t, err)

	rec.CreatedAt = time.Now().Add(-d)
	require.NoError(t, n.store.SaveObject(ctx, rec))
}

func TestScanOrphans_TrashesUnreferenced(t *testing.T) {
	n := orphanNode(t, 0)
	ctx := context.Background()

	referenced := n.supply(t, "referenced", "referenced.txt")
	aliased := n.supply(t, "aliased", "aliased.txt")
	orphan := n.supply(t, "orphan", "orphan.txt")

	require.NoError(t, n.db.Create(&note{Body: "see " + referenced + " for details"}).Error)

	_, err := n.chest.SetAlias(ctx, "docs", "", aliased)
	require.NoError(t, err)

	report, err := n.coord.ScanOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Referenced)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, []string{orphan}, report.Trashed)

	rec, err := n.chest.Record(ctx, orphan)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTrashed, rec.Status)
	assert.False(t, n.has(t, orphan))

	rec, err = n.chest.Record(ctx, referenced)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, rec.Status)
}

func TestScanOrphans_RetainsNewestWithinCap(t *testing.T) {
	n := orphanNode(t, 10)
	ctx := context.Background()

	oldest := n.supply(t, "oldest", "oldest.txt")
	middle := n.supply(t, "middle", "middle.txt")
	newest := n.supply(t, "newest", "newest.txt")

	age(t, n, oldest, 3*time.Hour)
	age(t, n, middle, 2*time.Hour)
	age(t, n, newest, time.Hour)

	report, err := n.coord.ScanOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 1, report.Retained)
	assert.ElementsMatch(t, []string{oldest, middle}, report.Trashed)
	assert.True(t, n.has(t, newest))
}

func TestScanOrphans_SkippedWithoutSources(t *testing.T) {
	n := newNode(t, "a", newPubSub(t), nodeOptions{})
	id := n.supply(t, "unreferenced", "u.txt")

	report, err := n.coord.ScanOrphans(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.True(t, n.has(t, id))
}

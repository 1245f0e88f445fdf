package backend_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yeisme/chest/pkg/internal/backend"
)

func TestIndex_LoadSortsByAtime(t *testing.T) {
	now := time.Now()
	x := backend.NewIndex(0)

	x.Load([]backend.Entry{
		{Hash: "c", Size: 1, Atime: now.Add(2 * time.Second)},
		{Hash: "a", Size: 1, Atime: now},
		{Hash: "b", Size: 1, Atime: now.Add(time.Second)},
	})

	assert.Equal(t, []string{"a", "b", "c"}, x.Snapshot())
}

func TestIndex_TakeOverBudget(t *testing.T) {
	now := time.Now()
	x := backend.NewIndex(100)

	assert.True(t, x.Add("a", 60, now))
	assert.Empty(t, x.TakeOverBudget())

	assert.True(t, x.Add("b", 60, now.Add(time.Second)))
	assert.False(t, x.Add("b", 60, now.Add(time.Second)), "duplicate add is ignored")

	victims := x.TakeOverBudget()
	if assert.Len(t, victims, 1) {
		assert.Equal(t, "a", victims[0].Hash)
	}

	assert.Equal(t, backend.Stats{TotalSize: 60, MaxSize: 100, Count: 1}, x.Stats())
}

func TestIndex_UnlimitedAndRemove(t *testing.T) {
	x := backend.NewIndex(0)
	x.Add("a", 1<<30, time.Now())

	assert.Empty(t, x.TakeOverBudget())

	e, ok := x.Remove("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1<<30), e.Size)
	assert.False(t, x.Contains("a"))

	_, ok = x.Remove("a")
	assert.False(t, ok)
	assert.Zero(t, x.Stats().TotalSize)
}

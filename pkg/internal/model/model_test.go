package model_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/chest/pkg/internal/model"
)

var hash = strings.Repeat("ab", 32)

func TestObjectID(t *testing.T) {
	id := model.ObjectID(hash)
	assert.Equal(t, "chestObject@"+hash, id)

	got, err := model.ParseObjectID(id)
	require.NoError(t, err)
	assert.Equal(t, hash, got)

	_, err = model.ParseObjectID("chestObject@nothex")
	require.Error(t, err)

	_, err = model.ParseObjectID("otherKind@" + hash)
	require.Error(t, err)
}

func TestAliasID(t *testing.T) {
	objectID := model.ObjectID(hash)
	id := model.AliasID("docs", objectID)

	assert.True(t, model.IsAliasID(id))
	assert.False(t, model.IsAliasID(objectID))

	ns, oid, err := model.ParseAliasID(id)
	require.NoError(t, err)
	assert.Equal(t, "docs", ns)
	assert.Equal(t, objectID, oid)

	_, _, err = model.ParseAliasID("chestAlias@@" + objectID)
	require.Error(t, err)
}

func TestObjectRecord_FileName(t *testing.T) {
	assert.Equal(t, "report.pdf", (&model.ObjectRecord{Name: "report", Ext: "pdf"}).FileName())
	assert.Equal(t, "report.pdf", (&model.ObjectRecord{Name: "report.pdf", Ext: "pdf"}).FileName())
	assert.Equal(t, "README", (&model.ObjectRecord{Name: "README"}).FileName())
}

func TestObjectRecord_WantsBytes(t *testing.T) {
	rec := model.ObjectRecord{Status: model.StatusPublished, Link: model.LinkLinked}
	assert.True(t, rec.WantsBytes())

	rec.Link = model.LinkUnlinked
	assert.False(t, rec.WantsBytes())

	rec.Link, rec.Status = model.LinkLinked, model.StatusTrashed
	assert.False(t, rec.WantsBytes())
}

// Package model 定义元数据库中的对象记录与别名记录.
package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/yeisme/chest/pkg/internal/backend"
)

// ObjectKind 对象 id 的前缀.
const ObjectKind = "chestObject"

// Status 记录状态.
type Status string

const (
	StatusPublished Status = "published"
	StatusTrashed   Status = "trashed"
)

// LinkState 物理字节是否应当存在.
type LinkState string

const (
	// LinkLinked 字节应当存在于本地.
	LinkLinked LinkState = "linked"
	// LinkUnlinked 元数据保留，字节可以缺失.
	LinkUnlinked LinkState = "unlinked"
)

// ObjectRecord 每个不同的内容哈希对应一条记录.
type ObjectRecord struct {
	ID         string              `gorm:"primaryKey;size:80"           json:"id"`
	Hash       string              `gorm:"size:64;uniqueIndex"          json:"hash"`
	Name       string              `gorm:"size:255;index"               json:"name"`
	Ext        string              `gorm:"size:16"                      json:"ext"`
	Size       int64               `json:"size"`
	Mime       string              `gorm:"size:255"                     json:"mime"`
	Charset    string              `gorm:"size:64"                      json:"charset,omitempty"`
	Encryption *backend.Encryption `gorm:"serializer:json;type:text"    json:"encryption,omitempty"`
	Link       LinkState           `gorm:"size:16;index"                json:"link"`
	Generation int64               `gorm:"index"                        json:"generation"`
	Status     Status              `gorm:"size:16;index"                json:"status"`
	// Metadata 可选的描述信息
	Metadata datatypes.JSONType[ObjectMetadata] `json:"metadata"`
	// Vectors 按索引名保存的嵌入向量，整体替换
	Vectors   datatypes.JSONType[Vectors] `json:"vectors"`
	CreatedAt time.Time                   `json:"createdAt"`
	UpdatedAt time.Time                   `json:"updatedAt"`
}

// Vectors 索引名到向量的映射.
type Vectors map[string][]float64

// TableName 表名.
func (ObjectRecord) TableName() string { return "chest_objects" }

// ObjectMetadata 对象的描述性元数据.
type ObjectMetadata struct {
	Title        string     `json:"title,omitempty"`
	Subject      string     `json:"subject,omitempty"`
	Description  string     `json:"description,omitempty"`
	Languages    []string   `json:"languages,omitempty"`
	CreateDate   *time.Time `json:"createDate,omitempty"`
	ModifyDate   *time.Time `json:"modifyDate,omitempty"`
	Authors      []string   `json:"authors,omitempty"`
	Contributors []string   `json:"contributors,omitempty"`
	Version      string     `json:"version,omitempty"`
}

// FileName 带扩展名的文件名.
func (r *ObjectRecord) FileName() string {
	if r.Ext == "" || strings.HasSuffix(strings.ToLower(r.Name), "."+r.Ext) {
		return r.Name
	}

	return r.Name + "." + r.Ext
}

// Published 记录是否处于发布状态.
func (r *ObjectRecord) Published() bool {
	return r.Status == StatusPublished
}

// WantsBytes 是否期望本地持有字节.
func (r *ObjectRecord) WantsBytes() bool {
	return r.Status == StatusPublished && r.Link != LinkUnlinked
}

// ObjectID 由哈希构造对象 id.
func ObjectID(hash string) string {
	return ObjectKind + "@" + hash
}

// ParseObjectID 从对象 id 中取出哈希.
func ParseObjectID(id string) (string, error) {
	kind, hash, ok := strings.Cut(id, "@")
	if !ok || kind != ObjectKind || !backend.ValidHash(hash) {
		return "", fmt.Errorf("%w: object id %q", backend.ErrInvalidHash, id)
	}

	return hash, nil
}

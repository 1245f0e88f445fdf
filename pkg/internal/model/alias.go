package model

import (
	"fmt"
	"strings"
	"time"
)

// AliasKind 别名 id 的前缀.
const AliasKind = "chestAlias"

// AliasRecord 把 (namespace, name) 指向某个对象.
// 同一 (namespace, name) 任意时刻至多一条 published 记录.
type AliasRecord struct {
	ID        string    `gorm:"primaryKey;size:200"             json:"id"`
	Namespace string    `gorm:"size:64;index:idx_alias_ns_name" json:"namespace"`
	Name      string    `gorm:"size:255;index:idx_alias_ns_name" json:"name"`
	ObjectID  string    `gorm:"size:80;index"                   json:"objectId"`
	Status    Status    `gorm:"size:16;index"                   json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 表名.
func (AliasRecord) TableName() string { return "chest_aliases" }

// AliasID 构造别名 id.
func AliasID(namespace, objectID string) string {
	return AliasKind + "@" + namespace + "@" + objectID
}

// ParseAliasID 拆出命名空间与对象 id.
func ParseAliasID(id string) (namespace, objectID string, err error) {
	rest, ok := strings.CutPrefix(id, AliasKind+"@")
	if !ok {
		return "", "", fmt.Errorf("invalid alias id %q", id)
	}

	namespace, objectID, ok = strings.Cut(rest, "@")
	if !ok || namespace == "" {
		return "", "", fmt.Errorf("invalid alias id %q", id)
	}

	if _, err := ParseObjectID(objectID); err != nil {
		return "", "", err
	}

	return namespace, objectID, nil
}

// IsAliasID 判断 id 是否为别名 id.
func IsAliasID(id string) bool {
	return strings.HasPrefix(id, AliasKind+"@")
}

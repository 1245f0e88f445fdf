package meta_test

import (
	"gorm.io/datatypes"

	"github.com/yeisme/chest/pkg/internal/model"
)

func datatypesOf(m model.ObjectMetadata) datatypes.JSONType[model.ObjectMetadata] {
	return datatypes.NewJSONType(m)
}

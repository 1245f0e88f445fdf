package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetAliasRequest 别名指向的对象.
type SetAliasRequest struct {
	ObjectID string `json:"objectId" binding:"required"`
}

// SetAlias 把 (namespace, name) 指向对象，原有别名被回收.
//
//	@Summary	设置别名
//	@Tags		别名
//	@Accept		json
//	@Produce	json
//	@Param		namespace	path		string			true	"命名空间"
//	@Param		name		path		string			true	"别名名称"
//	@Param		req			body		SetAliasRequest	true	"目标对象"
//	@Success	200			{object}	IDResponse		"别名 id"
//	@Failure	403			{object}	map[string]string
//	@Failure	404			{object}	map[string]string
//	@Router		/api/v1/chest/aliases/{namespace}/{name} [put]
func SetAlias(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	var req SetAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	id, err := chest.SetAlias(c.Request.Context(), c.Param("namespace"), c.Param("name"), req.ObjectID)
	if err != nil {
		abortWithError(c, err, "set alias failed")

		return
	}

	c.JSON(http.StatusOK, IDResponse{ID: id})
}

// ResolveAlias 返回别名当前指向的记录.
//
//	@Summary	解析别名
//	@Tags		别名
//	@Produce	json
//	@Param		namespace	path		string	true	"命名空间"
//	@Param		name		path		string	true	"别名名称"
//	@Success	200			{object}	model.AliasRecord
//	@Failure	404			{object}	map[string]string
//	@Router		/api/v1/chest/aliases/{namespace}/{name} [get]
func ResolveAlias(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	alias, err := chest.ResolveAlias(c.Request.Context(), c.Param("namespace"), c.Param("name"))
	if err != nil {
		abortWithError(c, err, "resolve alias failed")

		return
	}

	c.JSON(http.StatusOK, alias)
}

// TrashAlias 回收别名.
func TrashAlias(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	if err := chest.TrashAlias(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err, "trash alias failed")

		return
	}

	c.Status(http.StatusNoContent)
}

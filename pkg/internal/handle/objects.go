package handle

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/model"
	"github.com/yeisme/chest/pkg/internal/remote"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/log"
)

// maxKeySize 私钥 PEM 的最大长度.
const maxKeySize = 64 << 10

// SupplyObjectRequest 上传对象的表单.
type SupplyObjectRequest struct {
	File      *multipart.FileHeader `form:"file"      binding:"required"`
	Name      string                `form:"name"      binding:"max=255"`
	Ext       string                `form:"ext"       binding:"max=16"`
	Cert      string                `form:"cert"`
	Namespace string                `form:"namespace" binding:"max=64"`
	Alias     string                `form:"alias"     binding:"max=255"`
}

// IDResponse 返回对象 id 或别名 id.
type IDResponse struct {
	ID string `json:"id"`
}

// LocationResponse 对象的本地位置.
type LocationResponse struct {
	ID       string `json:"id"`
	Location string `json:"location"`
}

// SupplyObject 上传对象.
//
//	@Summary		上传对象
//	@Description	以 multipart 表单上传文件，提供 cert 时使用接收方证书加密保存，提供 namespace 时同时建立别名并返回别名 id
//	@Tags			对象
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file		true	"文件"
//	@Param			name		formData	string		false	"文件名，默认使用上传文件名"
//	@Param			ext			formData	string		false	"扩展名"
//	@Param			cert		formData	string		false	"接收方证书 PEM"
//	@Param			namespace	formData	string		false	"别名命名空间"
//	@Param			alias		formData	string		false	"别名名称"
//	@Success		201			{object}	IDResponse	"对象 id"
//	@Failure		400			{object}	map[string]string
//	@Failure		403			{object}	map[string]string
//	@Failure		503			{object}	map[string]string
//	@Router			/api/v1/chest/objects [post]
func SupplyObject(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	var req SupplyObjectRequest
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, err, "upload too large")
			return
		}

		l := log.Logger()
		l.Warn().Err(err).Msg("invalid supply request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	f, err := req.File.Open()
	if err != nil {
		abortWithError(c, err, "open uploaded file failed")

		return
	}
	defer f.Close()

	name := req.Name
	if name == "" {
		name = req.File.Filename
	}

	opts := service.SupplyOptions{
		FileName:  name,
		Extension: req.Ext,
		Namespace: req.Namespace,
		Alias:     req.Alias,
	}
	if req.Cert != "" {
		opts.RecipientCert = []byte(req.Cert)
	}

	id, err := chest.Supply(c.Request.Context(), f, opts)
	if err != nil {
		abortWithError(c, err, "supply object failed")

		return
	}

	c.JSON(http.StatusCreated, IDResponse{ID: id})
}

// SupplyRaw 接收客户端回传的原始字节，哈希必须与路径中的对象 id 一致.
//
//	@Summary		回传原始字节
//	@Tags			复制
//	@Accept			application/octet-stream
//	@Produce		json
//	@Param			id					path		string		true	"对象 id"
//	@Param			X-Chest-Name		header		string		false	"文件名（路径转义）"
//	@Param			X-Chest-Ext			header		string		false	"扩展名"
//	@Param			X-Chest-Encryption	header		string		false	"封装描述 JSON"
//	@Success		201					{object}	IDResponse
//	@Failure		409					{object}	map[string]string	"哈希不一致"
//	@Router			/api/v1/chest/objects/{id}/raw [put]
func SupplyRaw(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	opts := service.SupplyOptions{
		RelatedObjectID: c.Param("id"),
		Extension:       c.GetHeader(remote.HeaderExtension),
		Raw:             true,
	}

	if name := c.GetHeader(remote.HeaderFileName); name != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + remote.HeaderFileName})

			return
		}

		opts.FileName = unescaped
	}

	if raw := c.GetHeader(remote.HeaderEncryption); raw != "" {
		var enc backend.Encryption
		if err := sonic.UnmarshalString(raw, &enc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + remote.HeaderEncryption})

			return
		}

		opts.Encryption = &enc
	}

	id, err := chest.Supply(c.Request.Context(), c.Request.Body, opts)
	if err != nil {
		abortWithError(c, err, "supply raw object failed")

		return
	}

	c.JSON(http.StatusCreated, IDResponse{ID: id})
}

// GetObject 返回对象的原始存储字节，加密对象返回密文.
//
//	@Summary		读取原始字节
//	@Tags			对象
//	@Produce		application/octet-stream
//	@Param			id	path	string	true	"对象 id 或别名 id"
//	@Success		200	{file}	file
//	@Failure		404	{object}	map[string]string
//	@Router			/api/v1/chest/objects/{id} [get]
func GetObject(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	res, err := chest.Retrieve(c.Request.Context(), c.Param("id"), nil)
	if err != nil {
		abortWithError(c, err, "retrieve object failed")

		return
	}
	defer res.Stream.Close()

	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", res.Stream, objectHeaders(res))
}

// OpenObject 使用请求体中的私钥解密后返回对象内容.
//
//	@Summary		解密读取对象
//	@Tags			对象
//	@Accept			application/x-pem-file
//	@Produce		application/octet-stream
//	@Param			id	path	string	true	"对象 id 或别名 id"
//	@Success		200	{file}	file
//	@Failure		400	{object}	map[string]string
//	@Failure		404	{object}	map[string]string
//	@Router			/api/v1/chest/objects/{id}/open [post]
func OpenObject(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	key, err := io.ReadAll(io.LimitReader(c.Request.Body, maxKeySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	res, err := chest.Retrieve(c.Request.Context(), c.Param("id"), key)
	if err != nil {
		abortWithError(c, err, "open object failed")

		return
	}
	defer res.Stream.Close()

	contentType := res.Record.Mime
	if contentType == "" || (res.Record.Encryption != nil && len(key) == 0) {
		contentType = "application/octet-stream"
	}

	c.DataFromReader(http.StatusOK, -1, contentType, res.Stream, objectHeaders(res))
}

// objectHeaders 附带文件名与代数.
func objectHeaders(res *service.Retrieved) map[string]string {
	return map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": res.FileName}),
		"X-Chest-Generation":  strconv.FormatInt(res.Record.Generation, 10),
	}
}

// GetObjectMeta 返回对象记录.
//
//	@Summary		读取对象记录
//	@Tags			对象
//	@Produce		json
//	@Param			id	path		string	true	"对象 id 或别名 id"
//	@Success		200	{object}	model.ObjectRecord
//	@Failure		404	{object}	map[string]string
//	@Router			/api/v1/chest/objects/{id}/meta [get]
func GetObjectMeta(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	rec, err := chest.Record(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err, "read object record failed")

		return
	}

	c.JSON(http.StatusOK, rec)
}

// GetObjectLocation 返回对象的本地位置，fallback=true 时本地缺少会先取回字节.
//
//	@Summary		对象位置
//	@Tags			对象
//	@Produce		json
//	@Param			id			path		string	true	"对象 id 或别名 id"
//	@Param			fallback	query		bool	false	"本地缺少时取回"
//	@Success		200			{object}	LocationResponse
//	@Router			/api/v1/chest/objects/{id}/location [get]
func GetObjectLocation(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	id := c.Param("id")

	var (
		loc string
		err error
	)

	if fallback, _ := strconv.ParseBool(c.Query("fallback")); fallback {
		loc, err = chest.LocationWithFallback(c.Request.Context(), id)
	} else {
		loc, err = chest.Location(c.Request.Context(), id)
	}

	if err != nil {
		abortWithError(c, err, "locate object failed")

		return
	}

	c.JSON(http.StatusOK, LocationResponse{ID: id, Location: loc})
}

// TrashObject 回收对象.
//
//	@Summary	回收对象
//	@Tags		对象
//	@Param		id	path	string	true	"对象 id"
//	@Success	204
//	@Router		/api/v1/chest/objects/{id} [delete]
func TrashObject(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	if err := chest.Trash(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err, "trash object failed")

		return
	}

	c.Status(http.StatusNoContent)
}

// UnlinkObject 解除字节关联，保留记录.
func UnlinkObject(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	if err := chest.Unlink(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err, "unlink object failed")

		return
	}

	c.Status(http.StatusNoContent)
}

// SetObjectMetadata 设置对象的描述性元数据.
//
//	@Summary	设置元数据
//	@Tags		对象
//	@Accept		json
//	@Produce	json
//	@Param		id			path		string					true	"对象 id 或别名 id"
//	@Param		metadata	body		model.ObjectMetadata	true	"元数据"
//	@Success	200			{object}	model.ObjectRecord
//	@Router		/api/v1/chest/objects/{id}/metadata [put]
func SetObjectMetadata(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	var md model.ObjectMetadata
	if err := c.ShouldBindJSON(&md); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	rec, err := chest.SetMetadata(c.Request.Context(), c.Param("id"), md)
	if err != nil {
		abortWithError(c, err, "set metadata failed")

		return
	}

	c.JSON(http.StatusOK, rec)
}

// UpdateObjectVectors 替换对象的嵌入向量.
//
//	@Summary	替换嵌入向量
//	@Tags		对象
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"对象 id 或别名 id"
//	@Param		vectors	body		model.Vectors	true	"索引名到向量"
//	@Success	200		{object}	model.ObjectRecord
//	@Router		/api/v1/chest/objects/{id}/vectors [put]
func UpdateObjectVectors(c *gin.Context) {
	chest, ok := chestOf(c)
	if !ok {
		return
	}

	var vectors model.Vectors
	if err := c.ShouldBindJSON(&vectors); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	rec, err := chest.UpdateVectors(c.Request.Context(), c.Param("id"), vectors)
	if err != nil {
		abortWithError(c, err, "update vectors failed")

		return
	}

	c.JSON(http.StatusOK, rec)
}

package router_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/handle"
	"github.com/yeisme/chest/pkg/internal/model"
	"github.com/yeisme/chest/pkg/internal/remote"
	"github.com/yeisme/chest/pkg/internal/router"
	"github.com/yeisme/chest/pkg/internal/service"
)

const objects = "/api/v1/chest/objects/"

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &v), w.Body.String())

	return v
}

func TestSupplyObject_Multipart(t *testing.T) {
	s := newServer(t)

	w := s.upload(t, "report.txt", "quarterly numbers", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	id := decode[handle.IDResponse](t, w).ID
	assert.Equal(t, model.ObjectID(hashOf([]byte("quarterly numbers"))), id)

	w = s.request(http.MethodGet, objects+id+"/meta", nil)
	require.Equal(t, http.StatusOK, w.Code)

	rec := decode[model.ObjectRecord](t, w)
	assert.Equal(t, "report.txt", rec.Name)
	assert.Equal(t, "txt", rec.Ext)
	assert.Equal(t, int64(1), rec.Generation)
}

func TestSupplyObject_MissingFile(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chest/objects", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	w := s.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSupplyObject_NamespaceNotAllowed(t *testing.T) {
	s := newServer(t, func(cfg *configs.ChestConfig) { cfg.Namespaces = []string{"notes"} })

	w := s.upload(t, "a.txt", "a", map[string]string{"namespace": "other"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetObject_RawBytes(t *testing.T) {
	s := newServer(t)

	w := s.upload(t, "plain.txt", "plain bytes", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[handle.IDResponse](t, w).ID

	w = s.request(http.MethodGet, objects+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "plain bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "plain.txt")
	assert.Equal(t, "1", w.Header().Get("X-Chest-Generation"))
}

func TestGetObject_Errors(t *testing.T) {
	s := newServer(t)

	w := s.request(http.MethodGet, objects+"not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.request(http.MethodGet, objects+model.ObjectID(hashOf([]byte("nobody"))), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "not found")
}

func TestOpenObject_Decrypts(t *testing.T) {
	s := newServer(t)
	pub, priv := keyPair(t)

	w := s.upload(t, "secret.txt", "for your eyes only", map[string]string{"cert": string(pub)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[handle.IDResponse](t, w).ID

	w = s.request(http.MethodGet, objects+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, "for your eyes only", w.Body.String())

	req := httptest.NewRequest(http.MethodPost, objects+id+"/open", bytes.NewReader(priv))
	w = s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "for your eyes only", w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
}

func TestObjectLocation(t *testing.T) {
	s := newServer(t)

	w := s.upload(t, "where.txt", "here", nil)
	id := decode[handle.IDResponse](t, w).ID

	w = s.request(http.MethodGet, objects+id+"/location", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, s.be.Location(hashOf([]byte("here"))), decode[handle.LocationResponse](t, w).Location)

	w = s.request(http.MethodGet, objects+id+"/location?fallback=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSetObjectMetadata(t *testing.T) {
	s := newServer(t)

	w := s.upload(t, "paper.txt", "abstract", nil)
	id := decode[handle.IDResponse](t, w).ID

	w = s.request(http.MethodPut, objects+id+"/metadata", strings.NewReader(`{"title":"On Chests","authors":["a","b"]}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec, err := s.chest.Record(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "On Chests", rec.Metadata.Data().Title)
	assert.Equal(t, []string{"a", "b"}, rec.Metadata.Data().Authors)
}

func TestUpdateObjectVectors(t *testing.T) {
	s := newServer(t)

	w := s.upload(t, "vec.txt", "points", nil)
	id := decode[handle.IDResponse](t, w).ID

	w = s.request(http.MethodPut, objects+id+"/vectors", strings.NewReader(`{"0":[1.5,-2],"1":[]}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.Vectors{"0": {1.5, -2}, "1": {}}, decode[model.ObjectRecord](t, w).Vectors.Data())

	w = s.request(http.MethodPut, objects+id+"/vectors", strings.NewReader(`{"":[1]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.request(http.MethodPut, objects+"chestObject@nope/vectors", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrashAndUnlinkObject(t *testing.T) {
	s := newServer(t)

	w := s.upload(t, "old.txt", "outdated", nil)
	id := decode[handle.IDResponse](t, w).ID

	w = s.request(http.MethodPost, objects+id+"/unlink", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	rec, err := s.chest.Record(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.LinkUnlinked, rec.Link)

	w = s.request(http.MethodDelete, objects+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.request(http.MethodDelete, objects+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	rec, err = s.chest.Record(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTrashed, rec.Status)
}

func TestAliases(t *testing.T) {
	s := newServer(t)

	w := s.upload(t, "v1.txt", "version one", nil)
	id := decode[handle.IDResponse](t, w).ID

	w = s.request(http.MethodPut, "/api/v1/chest/aliases/docs/readme", strings.NewReader(`{"objectId":"`+id+`"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	aliasID := decode[handle.IDResponse](t, w).ID
	assert.Equal(t, model.AliasID("docs", id), aliasID)

	w = s.request(http.MethodGet, "/api/v1/chest/aliases/docs/readme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode[model.AliasRecord](t, w).ObjectID)

	// 别名 id 可以直接读取对象
	w = s.request(http.MethodGet, objects+aliasID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "version one", w.Body.String())

	w = s.request(http.MethodDelete, "/api/v1/chest/aliases/"+aliasID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.request(http.MethodGet, "/api/v1/chest/aliases/docs/readme", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetAlias_Validation(t *testing.T) {
	s := newServer(t)

	w := s.request(http.MethodPut, "/api/v1/chest/aliases/docs/readme", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReplicaRoutes(t *testing.T) {
	s := newServer(t)

	w := s.request(http.MethodPut, "/api/v1/chest/replica/role", strings.NewReader(`{"role":"client"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, configs.RoleClient, s.coord.Role())

	w = s.request(http.MethodPut, "/api/v1/chest/replica/role", strings.NewReader(`{"role":"observer"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.request(http.MethodGet, "/api/v1/chest/replica", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client", decode[map[string]any](t, w)["role"])

	w = s.request(http.MethodPost, "/api/v1/chest/replica/collect", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.request(http.MethodPost, "/api/v1/chest/replica/orphan-scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["skipped"])

	w = s.request(http.MethodPost, "/api/v1/chest/replica/jobs/no-such-job/run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthBackend(t *testing.T) {
	s := newServer(t)

	w := s.request(http.MethodGet, "/api/v1/health/backend", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, w)["status"])
}

func TestChestNotInjected(t *testing.T) {
	engine := gin.New()
	router.RegisterChestRoutes(engine.Group("/api/v1"), nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, objects+model.ObjectID(hashOf([]byte("x"))), nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// 客户端传输与服务端路由的往返.
func TestRemoteClient_AgainstServer(t *testing.T) {
	s := newServer(t)
	srv := httptest.NewServer(s.engine)
	t.Cleanup(srv.Close)

	rc, err := remote.New(srv.URL, configs.Defaults().Chest.Remote, configs.Defaults().CircuitBreaker)
	require.NoError(t, err)

	ctx := context.Background()

	id, err := s.chest.Supply(ctx, strings.NewReader("shared state"), service.SupplyOptions{FileName: "state.json"})
	require.NoError(t, err)

	rec, err := rc.Record(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "state.json", rec.Name)

	body, err := rc.Fetch(ctx, id)
	require.NoError(t, err)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "shared state", string(data))

	// 回传一个服务端没有的对象，名称经过路径转义
	content := "from the field"
	newID := model.ObjectID(hashOf([]byte(content)))
	require.NoError(t, rc.Supply(ctx, newID, strings.NewReader(content), &model.ObjectRecord{Name: "现场记录", Ext: "txt"}))

	got, err := s.chest.Record(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, "现场记录", got.Name)
	assert.Equal(t, "txt", got.Ext)

	// 哈希不一致被拒绝
	err = rc.Supply(ctx, newID, strings.NewReader("tampered"), nil)
	require.NoError(t, err, "object already present, upload is a no-op")

	other := model.ObjectID(hashOf([]byte("expected")))
	err = rc.Supply(ctx, other, strings.NewReader("tampered"), nil)
	require.ErrorIs(t, err, remote.ErrRejected)
}

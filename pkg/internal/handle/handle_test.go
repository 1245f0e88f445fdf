package handle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/remote"
	"github.com/yeisme/chest/pkg/internal/service"
	"github.com/yeisme/chest/pkg/rule"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("read: %w", backend.ErrNotFound), http.StatusNotFound},
		{"integrity", &backend.IntegrityError{Expected: "a", Actual: "b"}, http.StatusConflict},
		{"not initialized", backend.ErrNotInitialized, http.StatusServiceUnavailable},
		{"namespace", fmt.Errorf("%w: x", service.ErrNamespaceNotAllowed), http.StatusForbidden},
		{"invalid hash", fmt.Errorf("%w: id", backend.ErrInvalidHash), http.StatusBadRequest},
		{"cipher", backend.ErrUnsupportedCipher, http.StatusBadRequest},
		{"vectors", fmt.Errorf("%w: empty index name", service.ErrInvalidVectors), http.StatusBadRequest},
		{"validation", rule.ValidateVar("", "required"), http.StatusBadRequest},
		{"unreachable", remote.ErrServerUnreachable, http.StatusBadGateway},
		{"no remote", service.ErrNoRemote, http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, statusOf(tc.err))
		})
	}
}

func TestHealthAll_NothingInjected(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)

	HealthAll(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Healthy    bool              `json:"healthy"`
		Components map[string]string `json:"components"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))

	assert.False(t, body.Healthy)
	assert.Equal(t, "skipped", body.Components["db"])
	assert.Equal(t, "skipped", body.Components["kv"])
	assert.Equal(t, errBackendNotReady.Error(), body.Components["backend"])
}

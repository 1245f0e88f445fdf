package remote_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/model"
	"github.com/yeisme/chest/pkg/internal/remote"
)

const testID = "chestObject@0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newClient(t *testing.T, h http.Handler, cb configs.CircuitBreakerConfig) *remote.Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := remote.New(srv.URL, configs.RemoteConfig{}, cb)
	require.NoError(t, err)

	return c
}

func TestNew_RequiresServerURL(t *testing.T) {
	_, err := remote.New(" ", configs.RemoteConfig{}, configs.CircuitBreakerConfig{})
	require.ErrorIs(t, err, remote.ErrNoServerURL)
}

func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+remote.APIPrefix+"/objects/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != testID {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write([]byte("raw bytes"))
	})

	c := newClient(t, mux, configs.CircuitBreakerConfig{})

	rc, err := c.Fetch(context.Background(), testID)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "raw bytes", string(got))

	_, err = c.Fetch(context.Background(), "chestObject@other")
	assert.True(t, backend.IsNotFound(err))
}

func TestFetch_ServerErrors(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"disk on fire"}`))
	}), configs.CircuitBreakerConfig{})

	_, err := c.Fetch(context.Background(), testID)
	require.ErrorIs(t, err, remote.ErrServerUnreachable)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestFetch_Rejected(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}), configs.CircuitBreakerConfig{})

	_, err := c.Fetch(context.Background(), testID)
	require.ErrorIs(t, err, remote.ErrRejected)
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := remote.New(srv.URL, configs.RemoteConfig{}, configs.CircuitBreakerConfig{})
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), testID)
	require.ErrorIs(t, err, remote.ErrServerUnreachable)
}

func TestRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+remote.APIPrefix+"/objects/{id}/meta", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"` + r.PathValue("id") + `","name":"report","ext":"pdf","generation":7,` +
			`"encryption":{"cipher":"aes-256-cbc","compress":"gzip","key":"a2V5"}}`))
	})

	c := newClient(t, mux, configs.CircuitBreakerConfig{})

	rec, err := c.Record(context.Background(), testID)
	require.NoError(t, err)
	assert.Equal(t, testID, rec.ID)
	assert.Equal(t, "report", rec.Name)
	assert.Equal(t, int64(7), rec.Generation)
	require.NotNil(t, rec.Encryption)
	assert.Equal(t, "gzip", rec.Encryption.Compress)
}

func TestSupply(t *testing.T) {
	var (
		gotBody []byte
		gotName string
		gotExt  string
		gotEnc  string
	)

	mux := http.NewServeMux()
	mux.HandleFunc("PUT "+remote.APIPrefix+"/objects/{id}/raw", func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotName, _ = url.PathUnescape(r.Header.Get(remote.HeaderFileName))
		gotExt = r.Header.Get(remote.HeaderExtension)
		gotEnc = r.Header.Get(remote.HeaderEncryption)

		w.WriteHeader(http.StatusCreated)
	})

	c := newClient(t, mux, configs.CircuitBreakerConfig{})

	rec := &model.ObjectRecord{
		Name:       "年度 报告",
		Ext:        "pdf",
		Encryption: &backend.Encryption{Cipher: "aes-256-cbc", Compress: "none", Key: "a2V5"},
	}

	err := c.Supply(context.Background(), testID, bytes.NewBufferString("payload"), rec)
	require.NoError(t, err)

	assert.Equal(t, "payload", string(gotBody))
	assert.Equal(t, "年度 报告", gotName)
	assert.Equal(t, "pdf", gotExt)
	assert.JSONEq(t, `{"cipher":"aes-256-cbc","compress":"none","key":"a2V5"}`, gotEnc)
}

func TestBreakerOpensOnUnreachable(t *testing.T) {
	var hits atomic.Int32

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}), configs.CircuitBreakerConfig{
		Enabled:           true,
		FailureRate:       0.5,
		MinRequests:       2,
		IntervalSeconds:   60,
		TimeoutSeconds:    60,
		MaxRequestsInHalf: 1,
	})

	for range 5 {
		_, err := c.Fetch(context.Background(), testID)
		require.ErrorIs(t, err, remote.ErrServerUnreachable)
	}

	assert.Equal(t, int32(2), hits.Load(), "breaker short-circuits after tripping")
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	var hits atomic.Int32

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}), configs.CircuitBreakerConfig{Enabled: true, FailureRate: 0.5, MinRequests: 1, TimeoutSeconds: 60})

	for range 4 {
		_, err := c.Fetch(context.Background(), testID)
		require.True(t, backend.IsNotFound(err))
	}

	assert.Equal(t, int32(4), hits.Load())
}

func TestFetch_SlowBodyOutlivesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("first "))
		w.(http.Flusher).Flush()
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte("second"))
	}))
	t.Cleanup(srv.Close)

	c, err := remote.New(srv.URL, configs.RemoteConfig{Timeout: 100 * time.Millisecond}, configs.CircuitBreakerConfig{})
	require.NoError(t, err)

	rc, err := c.Fetch(context.Background(), testID)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "first second", string(got))
}

func TestFetch_SlowHeadersUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c, err := remote.New(srv.URL, configs.RemoteConfig{Timeout: 100 * time.Millisecond}, configs.CircuitBreakerConfig{})
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), testID)
	require.ErrorIs(t, err, remote.ErrServerUnreachable)
}

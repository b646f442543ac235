package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kommendorkapten/bhdns/blocklist"
	"github.com/kommendorkapten/bhdns/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, addr string) *API {
	t.Helper()

	bl := blocklist.New()
	require.NoError(t, bl.Insert("test.com"))

	wl := blocklist.New()
	require.NoError(t, wl.Insert("good.test.com"))

	return New(&config.Config{API: addr}, bl, wl)
}

func Test_AllAPICalls(t *testing.T) {
	debugpprof = true
	defer func() { debugpprof = false }()

	a := newTestAPI(t, "")

	routes := []struct {
		ReqURL         string
		ExpectedStatus int
		Exists         *bool
	}{
		{"/api/v1/block/exists/test.com", http.StatusOK, ptr(true)},
		{"/api/v1/block/exists/www.test.com", http.StatusOK, ptr(true)},
		{"/api/v1/block/exists/good.test.com", http.StatusOK, ptr(false)},
		{"/api/v1/block/exists/example.com", http.StatusOK, ptr(false)},
		{"/api/v1/health", http.StatusOK, nil},
		{"/metrics", http.StatusOK, nil},
		{"/debug/pprof/cmdline", http.StatusOK, nil},
		{"/api/v1/block/set/test.com", http.StatusNotFound, nil},
	}

	for _, r := range routes {
		request, err := http.NewRequest(http.MethodGet, r.ReqURL, nil)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, request)

		assert.Equal(t, r.ExpectedStatus, w.Code, r.ReqURL)

		if r.Exists != nil {
			var body struct {
				Exists bool `json:"exists"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, *r.Exists, body.Exists, r.ReqURL)
		}
	}
}

func ptr(b bool) *bool { return &b }

func Test_RunDisabled(t *testing.T) {
	a := newTestAPI(t, "")
	assert.NoError(t, a.Run(context.Background()))
}

func Test_Run(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	a := newTestAPI(t, addr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/v1/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("api did not stop")
	}
}

func Test_RunAddressInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	a := newTestAPI(t, l.Addr().String())
	assert.Error(t, a.Run(context.Background()))
}

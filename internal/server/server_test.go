package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/config"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/tracing"
)

const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = "0"
	cfg.Logging.Level = "error"
	cfg.Realtime.MaxReconnectAttempts = 0
	cfg.Realtime.HandshakeTimeout = time.Second
	cfg.Chain.DialTimeout = time.Second
	return cfg
}

func serve(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServerRoutes(t *testing.T) {
	s, err := NewServer(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	w := serve(t, s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(tracing.Header))

	var body map[string]any
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	rt := body["realtime"].(map[string]any)
	assert.Equal(t, "disconnected", rt["state"])

	w = serve(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ambience_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestReadOnlyServerRejectsWrites(t *testing.T) {
	s, err := NewServer(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	req := httptest.NewRequest(http.MethodPost, "/rooms/1/messages", strings.NewReader(`{"content":"gm"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(t, s, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/network/switch", strings.NewReader(`{"chainId": 42220}`))
	req.Header.Set("Content-Type", "application/json")
	w = serve(t, s, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHistoryDisabledByDefault(t *testing.T) {
	s, err := NewServer(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	w := serve(t, s, httptest.NewRequest(http.MethodGet, "/rooms/1/history", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s, err := NewServer(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	req := httptest.NewRequest(http.MethodOptions, "/rooms", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(t, s, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServerWithWallet(t *testing.T) {
	cfg := testConfig()
	cfg.Chain.PrivateKey = devKey

	s, err := NewServer(cfg)
	require.NoError(t, err)
	_ = s.Close()

	cfg.Chain.PrivateKey = "not-a-key"
	_, err = NewServer(cfg)
	assert.Error(t, err)
}

func TestNewServerRejectsBadNetwork(t *testing.T) {
	cfg := testConfig()
	cfg.Networks = []config.NetworkConfig{{Name: "broken", ChainID: 1, RPCURL: "http://x", ChatContract: "nope"}}

	_, err := NewServer(cfg)
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := NewServer(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

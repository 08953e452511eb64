package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pookie-sol/presale-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testServerConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Mode: gin.TestMode,
		},
		Security: config.SecurityConfig{
			AdminPassword: "test-password",
			TokenTTL:      time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			Window:        time.Minute,
			MaxRequests:   100,
			SweepInterval: time.Hour,
		},
		RPCRateLimit: config.RateLimitConfig{
			Window:        time.Minute,
			MaxRequests:   100,
			SweepInterval: time.Hour,
		},
		RPC: config.RPCConfig{
			Endpoints: []string{"http://127.0.0.1:0"},
			Timeout:   time.Second,
		},
		Presale: config.PresaleConfig{
			ValidAmounts:  []float64{0.25, 0.5, 1.0, 2.0},
			TargetSOL:     24.25,
			ScanInterval:  time.Hour,
			BatchSize:     50,
			MaxBatches:    1,
			StatsCacheTTL: time.Nanosecond,
		},
		Storage: config.StorageConfig{
			ContributionsDir: t.TempDir(),
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	return s
}

func doJSON(s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthAndPing(t *testing.T) {
	s := newTestServer(t, testServerConfig(t))

	assert.Equal(t, 200, doJSON(s, "GET", "/health", nil, nil).Code)
	assert.Equal(t, 200, doJSON(s, "GET", "/ping", nil, nil).Code)
}

func TestAdminLogin_Success(t *testing.T) {
	s := newTestServer(t, testServerConfig(t))

	w := doJSON(s, "POST", "/admin/login", gin.H{"password": "test-password"}, nil)
	require.Equal(t, 200, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)

	// The issued token opens the authenticated routes.
	w = doJSON(s, "GET", "/admin/verify", nil, map[string]string{"X-Admin-Token": resp.Token})
	assert.Equal(t, 200, w.Code)

	w = doJSON(s, "GET", "/admin/contributions", nil, map[string]string{"X-Admin-Token": resp.Token})
	assert.Equal(t, 200, w.Code)
}

func TestAdminLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t, testServerConfig(t))

	w := doJSON(s, "POST", "/admin/login", gin.H{"password": "wrong"}, nil)
	assert.Equal(t, 401, w.Code)
}

func TestAdminLogin_MissingBody(t *testing.T) {
	s := newTestServer(t, testServerConfig(t))

	w := doJSON(s, "POST", "/admin/login", gin.H{}, nil)
	assert.Equal(t, 400, w.Code)
}

func TestAdminLogin_RateLimited(t *testing.T) {
	cfg := testServerConfig(t)
	cfg.RateLimit.MaxRequests = 2
	s := newTestServer(t, cfg)

	headers := map[string]string{"X-Forwarded-For": "198.51.100.7"}

	assert.Equal(t, 401, doJSON(s, "POST", "/admin/login", gin.H{"password": "wrong"}, headers).Code)
	assert.Equal(t, 401, doJSON(s, "POST", "/admin/login", gin.H{"password": "wrong"}, headers).Code)
	assert.Equal(t, 429, doJSON(s, "POST", "/admin/login", gin.H{"password": "wrong"}, headers).Code)

	// A correct password is rejected too once the quota is gone.
	assert.Equal(t, 429, doJSON(s, "POST", "/admin/login", gin.H{"password": "test-password"}, headers).Code)

	// A different client still has its own budget.
	other := map[string]string{"X-Forwarded-For": "203.0.113.9"}
	assert.Equal(t, 200, doJSON(s, "POST", "/admin/login", gin.H{"password": "test-password"}, other).Code)
}

func TestAdminLogin_NoSecretConfigured(t *testing.T) {
	cfg := testServerConfig(t)
	cfg.Security.AdminPassword = ""
	s := newTestServer(t, cfg)

	w := doJSON(s, "POST", "/admin/login", gin.H{"password": "anything"}, nil)
	assert.Equal(t, 503, w.Code)

	w = doJSON(s, "GET", "/admin/logs", nil, map[string]string{"X-Admin-Token": "whatever"})
	assert.Equal(t, 503, w.Code)
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t, testServerConfig(t))

	w := doJSON(s, "GET", "/admin/contributions", nil, nil)
	assert.Equal(t, 401, w.Code)

	w = doJSON(s, "GET", "/admin/contributions", nil, map[string]string{"X-Admin-Token": "forged"})
	assert.Equal(t, 401, w.Code)
}

func TestAdminVerify_InvalidToken(t *testing.T) {
	s := newTestServer(t, testServerConfig(t))

	w := doJSON(s, "GET", "/admin/verify", nil, map[string]string{"X-Admin-Token": "nope"})
	assert.Equal(t, 401, w.Code)
}

func TestClientKey_PrefersForwardedFor(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")

	assert.Equal(t, "198.51.100.7", clientKey(c))

	c.Request.Header.Del("X-Forwarded-For")
	c.Request.RemoteAddr = "192.0.2.4:1234"
	assert.NotEmpty(t, clientKey(c))
}

func TestPresaleStats_Public(t *testing.T) {
	rpcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"result": map[string]any{"value": 5_000_000_000},
		})
	}))
	defer rpcSrv.Close()

	cfg := testServerConfig(t)
	cfg.RPC.Endpoints = []string{rpcSrv.URL}
	cfg.Presale.TreasuryWallet = "treasury"
	s := newTestServer(t, cfg)

	w := doJSON(s, "GET", "/presale/stats", nil, nil)
	require.Equal(t, 200, w.Code)

	var stats struct {
		TargetSOL       float64 `json:"targetSol"`
		TreasuryBalance float64 `json:"treasuryBalance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 24.25, stats.TargetSOL)
	assert.Equal(t, 5.0, stats.TreasuryBalance)
}

func TestPresaleStats_SnapshotAbsorbsRepeatHits(t *testing.T) {
	var upstreamCalls atomic.Int64
	rpcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"result": map[string]any{"value": 5_000_000_000},
		})
	}))
	defer rpcSrv.Close()

	cfg := testServerConfig(t)
	cfg.RPC.Endpoints = []string{rpcSrv.URL}
	cfg.Presale.StatsCacheTTL = time.Minute
	s := newTestServer(t, cfg)

	for i := 0; i < 10; i++ {
		require.Equal(t, 200, doJSON(s, "GET", "/presale/stats", nil, nil).Code)
	}

	// One snapshot serves all ten anonymous hits.
	assert.Equal(t, int64(1), upstreamCalls.Load())
}

func TestPresaleStats_SnapshotExpires(t *testing.T) {
	var upstreamCalls atomic.Int64
	rpcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"result": map[string]any{"value": 5_000_000_000},
		})
	}))
	defer rpcSrv.Close()

	cfg := testServerConfig(t)
	cfg.RPC.Endpoints = []string{rpcSrv.URL}
	cfg.Presale.StatsCacheTTL = 20 * time.Millisecond
	s := newTestServer(t, cfg)

	require.Equal(t, 200, doJSON(s, "GET", "/presale/stats", nil, nil).Code)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 200, doJSON(s, "GET", "/presale/stats", nil, nil).Code)

	assert.Equal(t, int64(2), upstreamCalls.Load())
}

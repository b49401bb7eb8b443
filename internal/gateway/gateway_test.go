// ABOUTME: Tests for Gateway construction, health endpoints and the Run/Shutdown lifecycle
// ABOUTME: Uses the in-memory MockStore and httptest servers

package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/huddle/internal/config"
	"github.com/2389/huddle/internal/store"
)

const testJWTSecret = "test-secret-key-for-jwt-signing!"

// testConfig creates a config with defaults and the cheapest bcrypt cost.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = filepath.Join(t.TempDir(), "huddle.db")
	cfg.Auth.BcryptCost = bcrypt.MinCost
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestGateway builds a gateway over a MockStore. Shutdown runs on cleanup.
func newTestGateway(t *testing.T, mutate ...func(*config.Config)) (*Gateway, *store.MockStore) {
	t.Helper()
	cfg := testConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}
	s := store.NewMockStore()
	gw, err := newGateway(cfg, s, nil, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return gw, s
}

func withAuth(cfg *config.Config) {
	cfg.Auth.JWTSecret = testJWTSecret
}

func TestGatewayNew_SQLite(t *testing.T) {
	cfg := testConfig(t)

	gw, err := New(cfg, testLogger())
	require.NoError(t, err)
	defer func() { _ = gw.Shutdown(context.Background()) }()

	assert.Same(t, cfg, gw.config)
	assert.NotNil(t, gw.store)
	assert.NotNil(t, gw.conversation)
	assert.Nil(t, gw.verifier, "no secret means no verifier")
	assert.Nil(t, gw.relay)
	assert.Contains(t, gw.serverID, "huddle-")
}

func TestGatewayNew_WeakSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"

	_, err := newGateway(cfg, store.NewMockStore(), nil, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT verifier")
}

func TestGatewayNew_BadRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Realtime.RedisURL = "not-a-redis-url"

	_, err := New(cfg, testLogger())
	require.Error(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	gw, s := newTestGateway(t)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s.PingErr = errors.New("disk gone")
	resp, err = http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no allow list", nil, "https://evil.example", true},
		{"no origin header", []string{"https://chat.example"}, "", true},
		{"listed origin", []string{"https://chat.example"}, "https://chat.example", true},
		{"unlisted origin", []string{"https://chat.example"}, "https://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, _ := newTestGateway(t, func(cfg *config.Config) {
				cfg.Realtime.AllowedOrigins = tt.allowed
			})
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, gw.checkOrigin(req))
		})
	}
}

func TestGatewayRunAndShutdown(t *testing.T) {
	cfg := testConfig(t)

	// reserve a port so the test knows where to connect
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg.Server.HTTPAddr = ln.Addr().String()
	require.NoError(t, ln.Close())

	gw, err := New(cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Server.HTTPAddr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestResolveTailscaleStateDir(t *testing.T) {
	dir, err := resolveTailscaleStateDir("/var/lib/huddle/ts")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/huddle/ts", dir)

	dir, err = resolveTailscaleStateDir("")
	require.NoError(t, err)
	assert.Contains(t, dir, filepath.Join("huddle", "tailscale"))
}

func TestResolveTailscaleAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")
	_, err := resolveTailscaleAuthKey("")
	require.Error(t, err)

	key, err := resolveTailscaleAuthKey("tskey-config")
	require.NoError(t, err)
	assert.Equal(t, "tskey-config", key)

	t.Setenv("TS_AUTHKEY", "tskey-env")
	key, err = resolveTailscaleAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", key)
}

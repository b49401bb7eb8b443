// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, HUDDLE_* overrides, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "0123456789abcdef0123456789abcdef"
  token_ttl: "2h"
  bcrypt_cost: 12

realtime:
  subscriber_buffer: 128
  write_timeout: "5s"
  pong_timeout: "30s"
  max_frame_bytes: 4096
  dedupe_ttl: "1m"
  dedupe_max_entries: 50
  allowed_origins:
    - "https://chat.example.com"
  redis_url: "redis://localhost:6379/0"
  redis_prefix: "chat:"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 128, cfg.Realtime.SubscriberBuffer)
	assert.Equal(t, 5*time.Second, cfg.Realtime.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Realtime.PongTimeout)
	assert.Equal(t, int64(4096), cfg.Realtime.MaxFrameBytes)
	assert.Equal(t, time.Minute, cfg.Realtime.DedupeTTL)
	assert.Equal(t, 50, cfg.Realtime.DedupeMaxEntries)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.Realtime.AllowedOrigins)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Realtime.RedisURL)
	assert.Equal(t, "chat:", cfg.Realtime.RedisPrefix)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
http_addr = "127.0.0.1:9000"

[database]
path = "/tmp/huddle.db"

[realtime]
pong_timeout = "45s"

[logging]
format = "text"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/huddle.db", cfg.Database.Path)
	assert.Equal(t, 45*time.Second, cfg.Realtime.PongTimeout)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  http_addr: ":8080"
database:
  path: "./test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 64, cfg.Realtime.SubscriberBuffer)
	assert.Equal(t, int64(64*1024), cfg.Realtime.MaxFrameBytes)
	assert.Equal(t, 10*time.Second, cfg.Realtime.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.Realtime.PongTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Realtime.DedupeTTL)
	assert.Equal(t, 10000, cfg.Realtime.DedupeMaxEntries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_HUDDLE_SECRET", "expanded-secret-that-is-long-enough!")
	t.Setenv("TEST_HUDDLE_DB", "/data/huddle.db")

	path := writeConfig(t, "config.yaml", `
server:
  http_addr: ":8080"
database:
  path: "${TEST_HUDDLE_DB}"
auth:
  jwt_secret: "${TEST_HUDDLE_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/huddle.db", cfg.Database.Path)
	assert.Equal(t, "expanded-secret-that-is-long-enough!", cfg.Auth.JWTSecret)
}

func TestLoad_HuddleOverrides(t *testing.T) {
	t.Setenv("HUDDLE_HTTP_ADDR", "127.0.0.1:7000")
	t.Setenv("HUDDLE_DB_PATH", "/override.db")
	t.Setenv("HUDDLE_LOG_LEVEL", "warn")
	t.Setenv("HUDDLE_REDIS_URL", "redis://cache:6379")

	path := writeConfig(t, "config.yaml", `
server:
  http_addr: ":8080"
database:
  path: "./test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.HTTPAddr)
	assert.Equal(t, "/override.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "redis://cache:6379", cfg.Realtime.RedisURL)
}

func TestLoad_OverrideSatisfiesRequiredField(t *testing.T) {
	t.Setenv("HUDDLE_DB_PATH", "/from-env.db")

	path := writeConfig(t, "config.yaml", `
server:
  http_addr: ":8080"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from-env.db", cfg.Database.Path)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing http addr",
			content: "database:\n  path: x.db\n",
			wantErr: "server.http_addr",
		},
		{
			name:    "tailscale without hostname",
			content: "tailscale:\n  enabled: true\ndatabase:\n  path: x.db\n",
			wantErr: "tailscale.hostname",
		},
		{
			name:    "missing database path",
			content: "server:\n  http_addr: \":80\"\n",
			wantErr: "database.path",
		},
		{
			name:    "short jwt secret",
			content: "server:\n  http_addr: \":80\"\ndatabase:\n  path: x.db\nauth:\n  jwt_secret: short\n",
			wantErr: "jwt_secret",
		},
		{
			name:    "bad bcrypt cost",
			content: "server:\n  http_addr: \":80\"\ndatabase:\n  path: x.db\nauth:\n  bcrypt_cost: 2\n",
			wantErr: "bcrypt_cost",
		},
		{
			name:    "bad log format",
			content: "server:\n  http_addr: \":80\"\ndatabase:\n  path: x.db\nlogging:\n  format: xml\n",
			wantErr: "logging.format",
		},
		{
			name:    "bad duration",
			content: "server:\n  http_addr: \":80\"\ndatabase:\n  path: x.db\nrealtime:\n  pong_timeout: soon\n",
			wantErr: "pong_timeout",
		},
		{
			name:    "negative duration",
			content: "server:\n  http_addr: \":80\"\ndatabase:\n  path: x.db\nauth:\n  token_ttl: -1h\n",
			wantErr: "token_ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "config.yaml", tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", "server: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("HUDDLE_DOTENV_PROBE=from-file\n"), 0644))

	t.Setenv("HUDDLE_DOTENV_PROBE", "")
	os.Unsetenv("HUDDLE_DOTENV_PROBE")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envPath))
	assert.Equal(t, "from-file", os.Getenv("HUDDLE_DOTENV_PROBE"))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 64, cfg.Realtime.SubscriberBuffer)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

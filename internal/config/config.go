// ABOUTME: Configuration loading and parsing for huddle
// ABOUTME: Supports YAML or TOML files with ${VAR} expansion, HUDDLE_* overrides and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// MinJWTSecretLength matches the minimum accepted by the token verifier.
const MinJWTSecretLength = 32

// Config represents the complete huddle configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Realtime  RealtimeConfig  `yaml:"realtime" toml:"realtime"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve on :443 with Tailscale-provisioned certs
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration.
// An empty JWTSecret disables tokens and leaves the API and realtime channel open.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret" toml:"jwt_secret"`
	BcryptCost int    `yaml:"bcrypt_cost" toml:"bcrypt_cost"`

	TokenTTL    time.Duration `yaml:"-" toml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl" toml:"token_ttl"`
}

// RealtimeConfig holds WebSocket and fan-out configuration
type RealtimeConfig struct {
	SubscriberBuffer int      `yaml:"subscriber_buffer" toml:"subscriber_buffer"`
	MaxFrameBytes    int64    `yaml:"max_frame_bytes" toml:"max_frame_bytes"`
	DedupeMaxEntries int      `yaml:"dedupe_max_entries" toml:"dedupe_max_entries"`
	AllowedOrigins   []string `yaml:"allowed_origins" toml:"allowed_origins"`
	RedisURL         string   `yaml:"redis_url" toml:"redis_url"`
	RedisPrefix      string   `yaml:"redis_prefix" toml:"redis_prefix"`

	WriteTimeout time.Duration `yaml:"-" toml:"-"`
	PongTimeout  time.Duration `yaml:"-" toml:"-"`
	DedupeTTL    time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	WriteTimeoutRaw string `yaml:"write_timeout" toml:"write_timeout"`
	PongTimeoutRaw  string `yaml:"pong_timeout" toml:"pong_timeout"`
	DedupeTTLRaw    string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// envOverrides are read from HUDDLE_* variables after the file is parsed.
type envOverrides struct {
	HTTPAddr  string `envconfig:"HTTP_ADDR"`
	DBPath    string `envconfig:"DB_PATH"`
	JWTSecret string `envconfig:"JWT_SECRET"`
	LogLevel  string `envconfig:"LOG_LEVEL"`
	RedisURL  string `envconfig:"REDIS_URL"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, then HUDDLE_*
// variables override their fields. Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment overrides: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overwriting variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyEnvOverrides(cfg *Config) error {
	var o envOverrides
	if err := envconfig.Process("huddle", &o); err != nil {
		return err
	}

	if o.HTTPAddr != "" {
		cfg.Server.HTTPAddr = o.HTTPAddr
	}
	if o.DBPath != "" {
		cfg.Database.Path = o.DBPath
	}
	if o.JWTSecret != "" {
		cfg.Auth.JWTSecret = o.JWTSecret
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.RedisURL != "" {
		cfg.Realtime.RedisURL = o.RedisURL
	}
	return nil
}

// Default returns a configuration for a local single-instance server with
// every default applied.
func Default() *Config {
	cfg := &Config{
		Server:   ServerConfig{HTTPAddr: "127.0.0.1:8080"},
		Database: DatabaseConfig{Path: "huddle.db"},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Realtime.SubscriberBuffer == 0 {
		cfg.Realtime.SubscriberBuffer = 64
	}
	if cfg.Realtime.MaxFrameBytes == 0 {
		cfg.Realtime.MaxFrameBytes = 64 * 1024
	}
	if cfg.Realtime.WriteTimeout == 0 {
		cfg.Realtime.WriteTimeout = 10 * time.Second
	}
	if cfg.Realtime.PongTimeout == 0 {
		cfg.Realtime.PongTimeout = 60 * time.Second
	}
	if cfg.Realtime.DedupeTTL == 0 {
		cfg.Realtime.DedupeTTL = 5 * time.Minute
	}
	if cfg.Realtime.DedupeMaxEntries == 0 {
		cfg.Realtime.DedupeMaxEntries = 10000
	}
	if cfg.Realtime.RedisPrefix == "" {
		cfg.Realtime.RedisPrefix = "huddle:"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}

	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}

	if c.Realtime.SubscriberBuffer < 0 {
		return fmt.Errorf("realtime.subscriber_buffer must not be negative")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"realtime.write_timeout", cfg.Realtime.WriteTimeoutRaw, &cfg.Realtime.WriteTimeout},
		{"realtime.pong_timeout", cfg.Realtime.PongTimeoutRaw, &cfg.Realtime.PongTimeout},
		{"realtime.dedupe_ttl", cfg.Realtime.DedupeTTLRaw, &cfg.Realtime.DedupeTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}

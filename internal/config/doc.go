// Package config handles configuration loading for huddle.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from HUDDLE_CONFIG environment variable
//  2. ~/.config/huddle/config.yaml (or $XDG_CONFIG_HOME/huddle/config.yaml)
//
// A path ending in .toml is parsed as TOML; anything else as YAML. Before
// loading, the CLI reads ./.env with LoadDotEnv.
//
// # Environment Variables
//
// Values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${HUDDLE_JWT_SECRET}"
//
// After parsing, these variables override the file:
//
//	HUDDLE_HTTP_ADDR   server.http_addr
//	HUDDLE_DB_PATH     database.path
//	HUDDLE_JWT_SECRET  auth.jwt_secret
//	HUDDLE_LOG_LEVEL   logging.level
//	HUDDLE_REDIS_URL   realtime.redis_url
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
//	database:
//	  path: "~/.local/share/huddle/huddle.db"
//
//	auth:
//	  jwt_secret: "${HUDDLE_JWT_SECRET}"  # optional, >= 32 bytes; enables tokens
//	  token_ttl: "24h"
//	  bcrypt_cost: 10
//
//	realtime:
//	  subscriber_buffer: 64
//	  write_timeout: "10s"
//	  pong_timeout: "60s"
//	  max_frame_bytes: 65536
//	  dedupe_ttl: "5m"
//	  dedupe_max_entries: 10000
//	  allowed_origins: []                 # empty allows any origin
//	  redis_url: ""                       # set to share fan-out between instances
//	  redis_prefix: "huddle:"
//
//	tailscale:
//	  enabled: false
//	  hostname: "huddle"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config

// Package config provides centralized configuration management for the sync service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Source   SourceConfig
	Remote   RemoteConfig
	Sync     SyncConfig
	State    StateConfig
	Server   ServerConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// SourceConfig holds the Tally XML server settings.
type SourceConfig struct {
	// URL of the Tally XML server (default: http://localhost:9000)
	URL string `env:"TALLY_URL" default:"http://localhost:9000"`

	// Company selects the loaded company; empty uses the active one
	Company string `env:"TALLY_COMPANY"`

	// Timeout bounds one export request (default: 60s)
	Timeout time.Duration `env:"TALLY_TIMEOUT" default:"60s"`
}

// RemoteConfig holds the aggregation service settings.
type RemoteConfig struct {
	// BaseURL is the remote service root (required)
	BaseURL string `env:"REMOTE_BASE_URL" envAlt:"API_BASE_URL" required:"true"`

	// SyncPath receives chunk payloads (default: /api/sync)
	SyncPath string `env:"REMOTE_SYNC_PATH" default:"/api/sync"`

	// HealthPath is probed before every cycle (default: /health)
	HealthPath string `env:"REMOTE_HEALTH_PATH" default:"/health"`

	// APIToken is sent as a bearer token when set
	APIToken string `env:"REMOTE_API_TOKEN" envAlt:"API_TOKEN"`

	// Timeout bounds a single request attempt (default: 30s)
	Timeout time.Duration `env:"REMOTE_TIMEOUT" default:"30s"`

	// MaxRetries is how often a failed chunk is re-sent (default: 3)
	MaxRetries int `env:"REMOTE_MAX_RETRIES" default:"3"`

	// RetryInitial is the first retry delay (default: 500ms)
	RetryInitial time.Duration `env:"REMOTE_RETRY_INITIAL" default:"500ms"`

	// RetryMax caps the retry delay (default: 10s)
	RetryMax time.Duration `env:"REMOTE_RETRY_MAX" default:"10s"`

	// BreakerFailures opens the circuit after this many failed calls (default: 5)
	BreakerFailures int `env:"BREAKER_FAILURE_THRESHOLD" default:"5"`

	// BreakerSuccesses closes a half-open circuit (default: 1)
	BreakerSuccesses int `env:"BREAKER_SUCCESS_THRESHOLD" default:"1"`

	// BreakerCooldown is how long the circuit stays open (default: 60s)
	BreakerCooldown time.Duration `env:"BREAKER_COOLDOWN" default:"60s"`
}

// SyncConfig holds the cycle settings.
type SyncConfig struct {
	// Interval between scheduled cycles (default: 15m)
	Interval time.Duration `env:"SYNC_INTERVAL" default:"15m"`

	// ChunkSize is the number of records per payload (default: 100)
	ChunkSize int `env:"SYNC_CHUNK_SIZE" default:"100"`

	// ChunkDelay is the pause between payloads (default: 100ms)
	ChunkDelay time.Duration `env:"SYNC_CHUNK_DELAY" default:"100ms"`

	// LookbackDays sizes the bootstrap window of date-filtered tables (default: 365)
	LookbackDays int `env:"SYNC_LOOKBACK_DAYS" default:"365"`

	// Overlap is subtracted from the last sync time of incremental windows (default: 5m)
	Overlap time.Duration `env:"SYNC_OVERLAP" default:"5m"`

	// Tables restricts syncing to these table keys; empty syncs all
	Tables []string `env:"SYNC_TABLES"`

	// ShutdownGrace is how long a running cycle may finish on shutdown (default: 30s)
	ShutdownGrace time.Duration `env:"SYNC_SHUTDOWN_GRACE" default:"30s"`

	// RunOnce runs a single cycle and exits (default: false)
	RunOnce bool `env:"SYNC_RUN_ONCE" default:"false"`

	// SourceIdentifier tags every payload; empty derives one from the host name
	SourceIdentifier string `env:"SOURCE_IDENTIFIER"`
}

// StateConfig selects and configures the state backend.
type StateConfig struct {
	// Backend is one of: file, postgres, sqlite, redis (default: file)
	Backend string `env:"STATE_BACKEND" default:"file"`

	// File is the state file path for the file backend (default: sync-state.json)
	File string `env:"STATE_FILE" default:"sync-state.json"`

	// DocumentID keys the state row in SQL backends (default: default)
	DocumentID string `env:"STATE_DOCUMENT_ID" default:"default"`

	// DatabaseURL is the PostgreSQL connection string for the postgres backend
	DatabaseURL string `env:"STATE_DATABASE_URL" envAlt:"DATABASE_URL"`

	// MaxConns is the maximum number of pooled connections (default: 4)
	MaxConns int `env:"STATE_DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"STATE_DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"STATE_DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"STATE_DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// SQLitePath is the database file for the sqlite backend (default: sync-state.db)
	SQLitePath string `env:"STATE_SQLITE_PATH" default:"sync-state.db"`

	// RedisAddr is host:port of the redis backend (default: localhost:6379)
	RedisAddr string `env:"STATE_REDIS_ADDR" default:"localhost:6379"`

	RedisPassword string `env:"STATE_REDIS_PASSWORD"`

	RedisDB int `env:"STATE_REDIS_DB" default:"0"`

	// RedisKey holds the document (default: tallysync:state)
	RedisKey string `env:"STATE_REDIS_KEY" default:"tallysync:state"`
}

// ServerConfig holds the status API server settings.
type ServerConfig struct {
	// Enabled starts the status API (default: true)
	Enabled bool `env:"SERVER_ENABLED" default:"true"`

	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8090)
	Port int `env:"SERVER_PORT" default:"8090"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey rejects API requests without a valid key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File additionally writes logs to a rotating file when set
	File string `env:"LOG_FILE"`

	// MaxSizeMB rotates the log file at this size (default: 50)
	MaxSizeMB int `env:"LOG_MAX_SIZE_MB" default:"50"`

	// MaxBackups is the number of rotated files kept (default: 5)
	MaxBackups int `env:"LOG_MAX_BACKUPS" default:"5"`

	// MaxAgeDays removes rotated files older than this (default: 30)
	MaxAgeDays int `env:"LOG_MAX_AGE_DAYS" default:"30"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Lookback returns the bootstrap window length.
func (c *SyncConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

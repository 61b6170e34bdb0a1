package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if cfg.Sync.SourceIdentifier == "" {
		cfg.Sync.SourceIdentifier = defaultSourceIdentifier()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// defaultSourceIdentifier names this installation when none is configured.
// It is derived from the host name so it survives restarts.
func defaultSourceIdentifier() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "tallysync"
	}
	id := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(host))
	return host + "-" + id.String()[:8]
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Source validation
	if err := checkURL(c.Source.URL); err != nil {
		errs = append(errs, fmt.Sprintf("TALLY_URL (%q) %v", c.Source.URL, err))
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, "TALLY_TIMEOUT must be positive")
	}

	// Remote validation
	if c.Remote.BaseURL == "" {
		errs = append(errs, "REMOTE_BASE_URL is required")
	} else if err := checkURL(c.Remote.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("REMOTE_BASE_URL (%q) %v", c.Remote.BaseURL, err))
	}
	if !strings.HasPrefix(c.Remote.SyncPath, "/") {
		errs = append(errs, "REMOTE_SYNC_PATH must start with /")
	}
	if !strings.HasPrefix(c.Remote.HealthPath, "/") {
		errs = append(errs, "REMOTE_HEALTH_PATH must start with /")
	}
	if c.Remote.Timeout <= 0 {
		errs = append(errs, "REMOTE_TIMEOUT must be positive")
	}
	if c.Remote.MaxRetries < 0 {
		errs = append(errs, "REMOTE_MAX_RETRIES must be non-negative")
	}
	if c.Remote.RetryInitial <= 0 {
		errs = append(errs, "REMOTE_RETRY_INITIAL must be positive")
	}
	if c.Remote.RetryMax < c.Remote.RetryInitial {
		errs = append(errs, fmt.Sprintf("REMOTE_RETRY_MAX (%s) must be >= REMOTE_RETRY_INITIAL (%s)",
			c.Remote.RetryMax, c.Remote.RetryInitial))
	}
	if c.Remote.BreakerFailures <= 0 {
		errs = append(errs, "BREAKER_FAILURE_THRESHOLD must be positive")
	}
	if c.Remote.BreakerSuccesses <= 0 {
		errs = append(errs, "BREAKER_SUCCESS_THRESHOLD must be positive")
	}
	if c.Remote.BreakerCooldown < 0 {
		errs = append(errs, "BREAKER_COOLDOWN must be non-negative")
	}

	// Sync validation
	if c.Sync.Interval <= 0 {
		errs = append(errs, "SYNC_INTERVAL must be positive")
	}
	if c.Sync.ChunkSize <= 0 {
		errs = append(errs, "SYNC_CHUNK_SIZE must be positive")
	}
	if c.Sync.ChunkDelay < 0 {
		errs = append(errs, "SYNC_CHUNK_DELAY must be non-negative")
	}
	if c.Sync.LookbackDays <= 0 {
		errs = append(errs, "SYNC_LOOKBACK_DAYS must be positive")
	}
	if c.Sync.Overlap < 0 {
		errs = append(errs, "SYNC_OVERLAP must be non-negative")
	}
	if c.Sync.ShutdownGrace < 0 {
		errs = append(errs, "SYNC_SHUTDOWN_GRACE must be non-negative")
	}

	// State validation
	switch strings.ToLower(c.State.Backend) {
	case "file":
		if c.State.File == "" {
			errs = append(errs, "STATE_FILE is required for the file backend")
		}
	case "postgres":
		if c.State.DatabaseURL == "" {
			errs = append(errs, "STATE_DATABASE_URL is required for the postgres backend")
		}
		if c.State.MaxConns <= 0 {
			errs = append(errs, "STATE_DB_MAX_CONNS must be positive")
		}
		if c.State.MinConns < 0 {
			errs = append(errs, "STATE_DB_MIN_CONNS must be non-negative")
		}
		if c.State.MaxConns < c.State.MinConns {
			errs = append(errs, fmt.Sprintf("STATE_DB_MAX_CONNS (%d) must be >= STATE_DB_MIN_CONNS (%d)",
				c.State.MaxConns, c.State.MinConns))
		}
	case "sqlite":
		if c.State.SQLitePath == "" {
			errs = append(errs, "STATE_SQLITE_PATH is required for the sqlite backend")
		}
	case "redis":
		if c.State.RedisAddr == "" {
			errs = append(errs, "STATE_REDIS_ADDR is required for the redis backend")
		}
		if c.State.RedisKey == "" {
			errs = append(errs, "STATE_REDIS_KEY is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("STATE_BACKEND (%q) must be one of: file, postgres, sqlite, redis", c.State.Backend))
	}

	// Server validation
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
		}
		if c.Server.ReadTimeout < 0 {
			errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
		}
		if c.Server.ShutdownTimeout <= 0 {
			errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
		}
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB <= 0 {
		errs = append(errs, "LOG_MAX_SIZE_MB must be positive when LOG_FILE is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if u.Host == "" {
		return errors.New("has no host")
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// Secrets and connection strings are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Source: {URL: %q, Company: %q}, ", c.Source.URL, c.Source.Company))
	b.WriteString(fmt.Sprintf("Remote: {BaseURL: %q, Token: %s, MaxRetries: %d}, ",
		c.Remote.BaseURL, mask(c.Remote.APIToken), c.Remote.MaxRetries))
	b.WriteString(fmt.Sprintf("Sync: {Interval: %s, ChunkSize: %d, Tables: %v, RunOnce: %v}, ",
		c.Sync.Interval, c.Sync.ChunkSize, c.Sync.Tables, c.Sync.RunOnce))
	b.WriteString(fmt.Sprintf("State: {Backend: %q, DatabaseURL: %s, RedisPassword: %s}, ",
		c.State.Backend, mask(c.State.DatabaseURL), mask(c.State.RedisPassword)))
	b.WriteString(fmt.Sprintf("Server: {Enabled: %v, Host: %q, Port: %d}, ",
		c.Server.Enabled, c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q, File: %q}",
		c.Logging.Level, c.Logging.Format, c.Logging.File))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[EMPTY]"
	}
	return "[MASKED]"
}

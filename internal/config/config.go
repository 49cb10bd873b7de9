// Package config provides centralized configuration management for the
// BOM comparison service. It loads settings from environment variables with
// sensible defaults and validates them on startup to fail fast on
// misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Compare  CompareConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout covers reading both uploaded workbooks (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout must exceed the backend timeout (default: 150s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"150s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 140s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"140s"`
}

// BackendConfig points at the comparison backend that classifies parts.
type BackendConfig struct {
	// URL is the backend base URL; /api/compare and /health are appended
	URL string `env:"COMPARE_BACKEND_URL" envAlt:"API_URL" default:"http://localhost:8000"`

	// Timeout bounds a single comparison call (default: 120s)
	Timeout time.Duration `env:"COMPARE_TIMEOUT" default:"120s"`
}

// CompareConfig holds comparison and session settings.
type CompareConfig struct {
	// MaxFileSize is the per-file upload limit in bytes (default: 32MB)
	MaxFileSize int64 `env:"COMPARE_MAX_FILE_SIZE" default:"33554432"`

	// MaxConcurrent is the number of parallel backend calls (default: 4)
	MaxConcurrent int `env:"COMPARE_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a comparison slot (default: 30s)
	MaxWaitTime time.Duration `env:"COMPARE_MAX_WAIT_TIME" default:"30s"`

	// SessionTTL is how long an idle result stays available (default: 30m)
	SessionTTL time.Duration `env:"COMPARE_SESSION_TTL" default:"30m"`

	// JanitorInterval is how often expired sessions are evicted (default: 1m)
	JanitorInterval time.Duration `env:"COMPARE_JANITOR_INTERVAL" default:"1m"`
}

// DatabaseConfig holds the optional comparison-history database.
// History is disabled when URL is empty.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a history database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// CompareLimit is requests per minute for the compare endpoints (default: 10)
	CompareLimit int `env:"RATE_LIMIT_COMPARE" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects the JSON API with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled exposes metrics on Path (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Path is the scrape path (default: /metrics)
	Path string `env:"METRICS_PATH" default:"/metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

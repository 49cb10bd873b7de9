package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// lookupFunc reads one variable; os.LookupEnv in production.
type lookupFunc func(key string) (string, bool)

// Load reads configuration from environment variables, applies defaults
// for unset values and validates the result.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func load(lookup lookupFunc) (*Config, error) {
	cfg := &Config{}

	if err := populate(reflect.ValueOf(cfg).Elem(), lookup); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// populate fills tagged fields of the struct v, recursing into nested
// structs. Every bad or missing value is reported, not just the first.
func populate(v reflect.Value, lookup lookupFunc) error {
	var errs []error
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := populate(fv, lookup); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		key := field.Tag.Get("env")
		if key == "" {
			continue
		}

		value, ok := firstSet(lookup, key, field.Tag.Get("envAlt"))
		if !ok {
			if field.Tag.Get("required") == "true" {
				errs = append(errs, fmt.Errorf("required environment variable %s is not set", key))
				continue
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fv, value); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", key, value, err))
		}
	}

	return errors.Join(errs...)
}

// firstSet returns the first non-empty value among the given keys.
func firstSet(lookup lookupFunc, keys ...string) (string, bool) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// setField parses value into field according to the field's type.
func setField(field reflect.Value, value string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case field.Kind() == reflect.String:
		field.SetString(value)

	case field.Kind() == reflect.Int, field.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}

// Validate checks that the configuration is usable and reports every
// problem at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		add("SERVER_READ_TIMEOUT and SERVER_WRITE_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		add("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Backend
	if u, err := url.Parse(c.Backend.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("COMPARE_BACKEND_URL (%q) must be an absolute http(s) URL", c.Backend.URL)
	}
	if c.Backend.Timeout <= 0 {
		add("COMPARE_TIMEOUT must be positive")
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Backend.Timeout {
		add("SERVER_WRITE_TIMEOUT (%s) must exceed COMPARE_TIMEOUT (%s)", c.Server.WriteTimeout, c.Backend.Timeout)
	}

	// Compare
	if c.Compare.MaxFileSize <= 0 {
		add("COMPARE_MAX_FILE_SIZE must be positive")
	}
	if c.Compare.MaxConcurrent <= 0 {
		add("COMPARE_MAX_CONCURRENT must be positive")
	}
	if c.Compare.MaxWaitTime <= 0 {
		add("COMPARE_MAX_WAIT_TIME must be positive")
	}
	if c.Compare.SessionTTL <= 0 {
		add("COMPARE_SESSION_TTL must be positive")
	}
	if c.Compare.JanitorInterval <= 0 {
		add("COMPARE_JANITOR_INTERVAL must be positive")
	}

	// Database (only when history is enabled)
	if c.Database.Enabled() {
		if c.Database.MaxConns <= 0 {
			add("DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			add("DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			add("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	// Rate limits
	if c.Rate.Enabled && (c.Rate.RequestsPerMinute <= 0 || c.Rate.CompareLimit <= 0) {
		add("RATE_LIMIT_REQUESTS_PER_MINUTE and RATE_LIMIT_COMPARE must be positive when rate limiting is enabled")
	}

	// Security
	for _, cidr := range c.Security.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil && net.ParseIP(cidr) == nil {
			add("TRUSTED_PROXIES entry %q is not an IP or CIDR", cidr)
		}
	}
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		add("REQUIRE_API_KEY is true but API_KEYS is empty")
	}

	// Metrics
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("METRICS_PATH (%q) must start with /", c.Metrics.Path)
	}

	// Logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a representation safe for logs. Credentials are masked.
func (c *Config) String() string {
	db := "disabled"
	if c.Database.Enabled() {
		db = "[MASKED]"
	}
	return fmt.Sprintf("Config{Server: {Addr: %q}, Backend: {URL: %q, Timeout: %s}, "+
		"Compare: {MaxFileSize: %d, MaxConcurrent: %d, SessionTTL: %s}, "+
		"Database: {URL: %s, MaxConns: %d}, Rate: {Enabled: %v, RequestsPerMinute: %d}, "+
		"Security: {APIKeys: %d configured}, Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(), redactURL(c.Backend.URL), c.Backend.Timeout,
		c.Compare.MaxFileSize, c.Compare.MaxConcurrent, c.Compare.SessionTTL,
		db, c.Database.MaxConns, c.Rate.Enabled, c.Rate.RequestsPerMinute,
		len(c.Security.APIKeys), c.Logging.Level, c.Logging.Format,
	)
}

// redactURL hides any userinfo in u.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return "[INVALID]"
	}
	return parsed.Redacted()
}

// Package config provides centralized configuration management for the application.
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
	Server   ServerConfig
	Convert  ConvertConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Session  SessionConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Profile  ProfileConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`
}

// ConvertConfig holds pipeline defaults. CLI flags and request fields
// override them per run.
type ConvertConfig struct {
	// TimeFormat is the default explicit time format; empty means auto-detect
	TimeFormat string `env:"CONVERT_TIME_FORMAT"`

	// FixDuplicates shifts duplicate (serial, time) rows apart (default: true)
	FixDuplicates bool `env:"CONVERT_FIX_DUPLICATES" default:"true"`

	// SniffSampleBytes is how much of a file the delimiter sniffer sees (default: 8192)
	SniffSampleBytes int `env:"CONVERT_SNIFF_SAMPLE_BYTES" default:"8192"`

	// LenientUTF8 replaces invalid UTF-8 instead of rejecting the file (default: false)
	LenientUTF8 bool `env:"CONVERT_LENIENT_UTF8" default:"false"`

	// LargeRowWarning logs a warning for files with more rows (default: 1000000)
	LargeRowWarning int `env:"CONVERT_LARGE_ROW_WARNING" default:"1000000"`

	// PreviewRows caps the rows rendered in a preview (default: 500)
	PreviewRows int `env:"CONVERT_PREVIEW_ROWS" default:"500"`

	// MaxConcurrent is the maximum number of parallel conversions (default: 2)
	MaxConcurrent int `env:"CONVERT_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for a conversion slot (default: 30s)
	MaxWaitTime time.Duration `env:"CONVERT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single conversion (default: 10m)
	Timeout time.Duration `env:"CONVERT_TIMEOUT" default:"10m"`
}

// UploadConfig holds source upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// SessionConfig controls how long loaded files stay in memory.
type SessionConfig struct {
	// IdleTTL removes sessions unused for this long (default: 1h)
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" default:"1h"`

	// SweepInterval is how often idle sessions are looked for (default: 5m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"5m"`

	// MaxSessions evicts the least recently used session past this count (default: 50)
	MaxSessions int `env:"SESSION_MAX" default:"50"`

	// AuditCapacity is how many session operations the audit log keeps (default: 1000)
	AuditCapacity int `env:"SESSION_AUDIT_CAPACITY" default:"1000"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// APIKeys is a comma-separated list of accepted X-API-Key values
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey rejects API requests without a valid key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ProfileConfig locates saved mapping profiles.
type ProfileConfig struct {
	// Dir holds one YAML file per profile (default: profiles)
	Dir string `env:"COLLARCONV_PROFILE_DIR" envAlt:"PROFILE_DIR" default:"profiles"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

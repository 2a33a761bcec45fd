// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables (optionally layered over a
// YAML file named by CONFIG_FILE) with sensible defaults, and validates all
// settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Upload    UploadConfig
	Export    ExportConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 120s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 5m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies pending migrations on server start (default: false)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"false"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// Dir is where uploaded files are staged before import (default: /tmp/ovd-uploads)
	Dir string `env:"UPLOAD_DIR" default:"/tmp/ovd-uploads"`

	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of parallel imports (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// SweepInterval is how often abandoned uploads are swept (default: 1h)
	SweepInterval time.Duration `env:"UPLOAD_SWEEP_INTERVAL" default:"1h"`

	// MaxAge is how old a staged upload must be before the sweep removes it (default: 24h)
	MaxAge time.Duration `env:"UPLOAD_MAX_AGE" default:"24h"`

	// InboxDir holds spreadsheets picked up by scheduled imports (optional)
	InboxDir string `env:"OVD_INBOX_DIR"`
}

// ExportConfig holds export settings.
type ExportConfig struct {
	// Dir is where rendered workbooks are written (default: /tmp/ovd-exports)
	Dir string `env:"EXPORT_DIR" default:"/tmp/ovd-exports"`

	// DefaultWindow is the look-back used when a sync has no date range (default: 720h)
	DefaultWindow time.Duration `env:"EXPORT_DEFAULT_WINDOW" default:"720h"`

	// MaxAge is how long written workbooks are kept before the sweep removes them (default: 168h)
	MaxAge time.Duration `env:"EXPORT_MAX_AGE" default:"168h"`
}

// SchedulerConfig holds cron scheduler settings.
type SchedulerConfig struct {
	// Enabled starts the scheduler with the server (default: true)
	Enabled bool `env:"SCHEDULER_ENABLED" default:"true"`

	// Timezone is the IANA zone cron expressions are evaluated in (default: UTC)
	Timezone string `env:"SCHEDULER_TIMEZONE" default:"UTC"`

	// DefaultMaxRetries applies to configs created without max_retries (default: 3)
	DefaultMaxRetries int `env:"SCHEDULER_DEFAULT_MAX_RETRIES" default:"3"`
}

// NotifyConfig holds sync notification settings.
type NotifyConfig struct {
	// WebhookURL receives a JSON POST per notification; empty logs only
	WebhookURL string `env:"NOTIFY_WEBHOOK_URL"`

	// Timeout bounds each webhook call (default: 10s)
	Timeout time.Duration `env:"NOTIFY_TIMEOUT" default:"10s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for import and sync endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey gates /api behind X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// CORSOrigins is a comma-separated list of allowed origins (default: *)
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"*"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP/X-Forwarded-For headers are trusted
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File mirrors log output to a rotated file when set
	File string `env:"LOG_FILE"`

	// MaxSizeMB rotates the log file at this size (default: 100)
	MaxSizeMB int `env:"LOG_MAX_SIZE_MB" default:"100"`

	// MaxBackups is the number of rotated files kept (default: 5)
	MaxBackups int `env:"LOG_MAX_BACKUPS" default:"5"`

	// MaxAgeDays removes rotated files older than this (default: 30)
	MaxAgeDays int `env:"LOG_MAX_AGE_DAYS" default:"30"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Location resolves the scheduler timezone.
func (c *SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

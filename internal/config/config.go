// Package config provides centralized configuration for the service and the
// script runners. Values come from environment variables with defaults and
// are validated on startup so a misconfigured process fails before it
// touches storage.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Program  ProgramConfig
	Import   ImportConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the pool's maximum connection count (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the number of connections kept open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// AuthConfig holds token and credential settings.
type AuthConfig struct {
	// SigningKey signs access tokens (required)
	SigningKey string `env:"AUTH_SIGNING_KEY" required:"true"`

	// Issuer is the token issuer claim (default: cohort)
	Issuer string `env:"AUTH_ISSUER" default:"cohort"`

	// TokenTTL is the access token lifetime (default: 12h)
	TokenTTL time.Duration `env:"AUTH_TOKEN_TTL" default:"12h"`

	// AdminEmail/AdminPassword seed the default admin account at startup
	// when no identity with that email exists.
	AdminEmail    string `env:"AUTH_ADMIN_EMAIL" default:"admin@cohort.local"`
	AdminPassword string `env:"AUTH_ADMIN_PASSWORD" default:""`
}

// ProgramConfig describes the fixed program day window.
type ProgramConfig struct {
	// StartDate is the first program day, YYYY-MM-DD (default: 2025-08-04)
	StartDate string `env:"PROGRAM_START_DATE" default:"2025-08-04"`

	// Days is the number of sequential program days (default: 12)
	Days int `env:"PROGRAM_DAYS" default:"12"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum accepted CSV size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent bounds parallel import runs on the web surface (default: 2)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long an upload waits for an import slot (default: 10s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"10s"`
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
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Start parses the configured program start date.
func (c *ProgramConfig) Start() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("PROGRAM_START_DATE %q: %w", c.StartDate, err)
	}
	return t, nil
}

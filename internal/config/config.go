// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// ShutdownTimeoutSec bounds the graceful drain on SIGTERM.
	ShutdownTimeoutSec int `koanf:"shutdown_timeout_sec"`

	// QueueSize bounds the in-memory comparison queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of comparison workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets how many comparison ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxPageSize caps list and leaderboard limits.
	MaxPageSize int `koanf:"max_page_size"`
	// DefaultPageSize applies when a request gives no limit.
	DefaultPageSize int `koanf:"default_page_size"`
	// HistoryLimit is how many previous values each rating keeps; 0 is off.
	HistoryLimit int `koanf:"history_limit"`

	// JWTSecret signs and validates tokens. Empty enables header based
	// dev mode.
	JWTSecret string `koanf:"jwt_secret"`
	// JWTPreviousSecret is still accepted while secrets rotate.
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`
	JWTLeewaySec      int    `koanf:"jwt_leeway_sec"`
	// TenantClaim names the claim carrying the tenant id.
	TenantClaim string `koanf:"tenant_claim"`

	// WSWriteTimeoutMS bounds each websocket write.
	WSWriteTimeoutMS int `koanf:"ws_write_timeout_ms"`
	// AllowedOrigins restricts websocket upgrades; empty allows any.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		ShutdownTimeoutSec: 10,
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU() * 2,
		DedupeSize:         100_000,
		MaxPageSize:        100,
		DefaultPageSize:    25,
		HistoryLimit:       0,
		JWTLeewaySec:       30,
		TenantClaim:        "tenant_id",
		WSWriteTimeoutMS:   5000,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxPageSize < 1:
		return fmt.Errorf("%w: max_page_size must be at least 1", ErrInvalidConfig)
	case c.DefaultPageSize < 1 || c.DefaultPageSize > c.MaxPageSize:
		return fmt.Errorf("%w: default_page_size must be within [1, %d]", ErrInvalidConfig, c.MaxPageSize)
	case c.HistoryLimit < 0:
		return fmt.Errorf("%w: history_limit must not be negative", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	return nil
}

// JWTLeeway returns the configured clock leeway.
func (c *Config) JWTLeeway() time.Duration {
	return time.Duration(c.JWTLeewaySec) * time.Second
}

// WSWriteTimeout returns the websocket write deadline.
func (c *Config) WSWriteTimeout() time.Duration {
	return time.Duration(c.WSWriteTimeoutMS) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package config provides layered configuration loading (defaults, YAML
// file, environment variables) and validation for the security layer.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the top-level configuration for the security layer.
type Config struct {
	Security   SecurityConfig   `koanf:"security" validate:"required"`
	Store      StoreConfig      `koanf:"store"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
}

// SecurityConfig controls encryption, sampling, buffering, and retention.
type SecurityConfig struct {
	// SecretKey is the master secret the payload encryption key is
	// derived from. Required.
	SecretKey string `koanf:"secret_key" validate:"required,min=16"`

	// SamplingRate is the probability an info-severity event is kept.
	SamplingRate float64 `koanf:"sampling_rate" validate:"gt=0,lte=1"`

	// BufferMaxSize is the buffered event count that triggers an
	// immediate flush.
	BufferMaxSize int `koanf:"buffer_max_size" validate:"min=1,max=10000"`

	// FlushInterval is how often buffered events are persisted.
	FlushInterval time.Duration `koanf:"flush_interval" validate:"min=1s,max=1h"`

	// RetentionDays is how long events are kept.
	RetentionDays int `koanf:"retention_days" validate:"min=1,max=3650"`

	// RetentionInterval is how often retention cleanup runs.
	RetentionInterval time.Duration `koanf:"retention_interval" validate:"min=1m,max=24h"`

	// SweepInterval is how often expired rate-limit windows and idle
	// attack patterns are evicted from memory.
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"min=1m,max=24h"`

	// RateLimitRequests and RateLimitWindow define the default
	// fixed-window rate limit applied by CheckRateLimit callers.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"min=1s"`

	// BlockThreshold is the number of injection attempts before an
	// identifier is blocked.
	BlockThreshold int `koanf:"block_threshold" validate:"min=1"`

	// AllowedDomains is the supply-chain endpoint allow list.
	AllowedDomains []string `koanf:"allowed_domains"`
}

// StoreConfig selects and locates the event store backend.
type StoreConfig struct {
	// Type is the backend: memory, badger, or duckdb.
	Type string `koanf:"type" validate:"oneof=memory badger duckdb"`

	// Path is the on-disk location for persistent backends.
	Path string `koanf:"path"`
}

// ServerConfig controls the operational HTTP surface.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port" validate:"min=1,max=65535"`

	// RateLimitReqs bounds requests per client per minute.
	RateLimitReqs int `koanf:"rate_limit_reqs" validate:"min=1"`

	// CORSOrigins lists allowed CORS origins. A wildcard origin is
	// flagged by configuration validation at startup.
	CORSOrigins []string `koanf:"cors_origins"`

	// Timeout bounds request handling.
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// MonitoringConfig controls continuous security monitoring.
type MonitoringConfig struct {
	// Interval is how often the monitoring scan runs.
	Interval time.Duration `koanf:"interval" validate:"min=10s,max=24h"`

	// Threshold is the warning-or-critical event count within the
	// interval that raises an alert.
	Threshold int `koanf:"threshold" validate:"min=1"`
}

// defaultConfig returns the built-in defaults. SecretKey has no default
// and must be supplied.
func defaultConfig() Config {
	return Config{
		Security: SecurityConfig{
			SamplingRate:      0.10,
			BufferMaxSize:     50,
			FlushInterval:     30 * time.Second,
			RetentionDays:     30,
			RetentionInterval: time.Hour,
			SweepInterval:     10 * time.Minute,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			BlockThreshold:    3,
		},
		Store: StoreConfig{
			Type: "memory",
			Path: "data/vigil",
		},
		Server: ServerConfig{
			Enabled:       true,
			Host:          "0.0.0.0",
			Port:          8687,
			RateLimitReqs: 120,
			Timeout:       30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Monitoring: MonitoringConfig{
			Interval:  5 * time.Minute,
			Threshold: 10,
		},
	}
}

// Validate checks the configuration against the struct tags plus
// cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if ok := errors.As(err, &validationErrs); ok && len(validationErrs) > 0 {
			fieldErr := validationErrs[0]
			return fmt.Errorf("config field %s failed %q validation", fieldErr.Namespace(), fieldErr.Tag())
		}
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Store.Type != "memory" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the %s backend", c.Store.Type)
	}

	return nil
}

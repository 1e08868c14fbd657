// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the environment variable that points at an
// explicit config file.
const ConfigPathEnvVar = "VIGIL_CONFIG"

// DefaultConfigPaths are searched in order when no explicit path is set.
var DefaultConfigPaths = []string{
	"vigil.yaml",
	"config/vigil.yaml",
	"/etc/vigil/vigil.yaml",
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if it exists)
//  3. Environment variables: override any setting
//
// Precedence: ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: optional config file
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when supplied via environment variables.
var sliceConfigPaths = []string{
	"security.allowed_domains",
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars come in as strings, but the config
// expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from the YAML file)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config
// paths. Unmapped variables are skipped so random environment noise
// cannot pollute the configuration.
//
// Examples:
//   - VIGIL_SECRET_KEY -> security.secret_key
//   - VIGIL_STORE_TYPE -> store.type
//   - VIGIL_HTTP_PORT  -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Security mappings
		"vigil_secret_key":          "security.secret_key",
		"vigil_sampling_rate":       "security.sampling_rate",
		"vigil_buffer_max_size":     "security.buffer_max_size",
		"vigil_flush_interval":      "security.flush_interval",
		"vigil_retention_days":      "security.retention_days",
		"vigil_retention_interval":  "security.retention_interval",
		"vigil_rate_limit_requests": "security.rate_limit_requests",
		"vigil_rate_limit_window":   "security.rate_limit_window",
		"vigil_block_threshold":     "security.block_threshold",
		"vigil_allowed_domains":     "security.allowed_domains",

		// Store mappings
		"vigil_store_type": "store.type",
		"vigil_store_path": "store.path",

		// Server mappings
		"vigil_http_enabled":    "server.enabled",
		"vigil_http_host":       "server.host",
		"vigil_http_port":       "server.port",
		"vigil_http_rate_limit": "server.rate_limit_reqs",
		"vigil_cors_origins":    "server.cors_origins",
		"vigil_http_timeout":    "server.timeout",

		// Logging mappings
		"vigil_log_level":  "logging.level",
		"vigil_log_format": "logging.format",
		"vigil_log_caller": "logging.caller",

		// Monitoring mappings
		"vigil_monitoring_interval":  "monitoring.interval",
		"vigil_monitoring_threshold": "monitoring.threshold",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped
	return ""
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/notetrace/config.yaml",
	"/etc/notetrace/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			BaseURL:           "https://edith.xiaohongshu.com",
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 0.5, // One request every two seconds
			RequestBurst:      1,
			DetailRetries:     3,
			PageSize:          30,
		},
		Database: DatabaseConfig{
			Host:            "127.0.0.1",
			Port:            5432,
			User:            "notetrace",
			Password:        "",
			Name:            "notetrace",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		Sync: SyncConfig{
			AutoSync:         false,
			Interval:         6 * time.Hour,
			MinDelay:         5 * time.Second,
			MaxDelay:         300 * time.Second,
			InitialDelay:     30 * time.Second,
			BatchCommitSize:  5,
			HeartbeatTimeout: 300 * time.Second,
			CleanupInterval:  time.Minute,
		},
		Media: MediaConfig{
			Enabled:   true,
			Workers:   2,
			QueueSize: 256,
			Dir:       "/data/media",
			Timeout:   time.Minute,
		},
		Server: ServerConfig{
			Port:        8642,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			AdminUsername:     "",
			AdminPassword:     "",
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			TrustedProxies:    []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// PLATFORM_BASE_URL -> platform.base_url
	// POSTGRES_HOST -> database.host
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
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

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields converts comma-separated string values to slices for known
// slice fields. This is necessary because env vars come in as strings, but the
// config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
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
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - PLATFORM_BASE_URL -> platform.base_url
//   - POSTGRES_HOST -> database.host
//   - SYNC_AUTO -> sync.auto_sync
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Platform mappings
		"platform_base_url":    "platform.base_url",
		"platform_user_agent":  "platform.user_agent",
		"platform_timeout":     "platform.timeout",
		"platform_rps":         "platform.requests_per_second",
		"platform_burst":       "platform.request_burst",
		"platform_retries":     "platform.detail_retries",
		"platform_page_size":   "platform.page_size",

		// Database mappings
		"postgres_host":          "database.host",
		"postgres_port":          "database.port",
		"postgres_user":          "database.user",
		"postgres_password":      "database.password",
		"postgres_db":            "database.name",
		"postgres_ssl_mode":      "database.ssl_mode",
		"db_max_open_conns":      "database.max_open_conns",
		"db_max_idle_conns":      "database.max_idle_conns",
		"db_conn_max_lifetime":   "database.conn_max_lifetime",
		"db_auto_migrate":        "database.auto_migrate",

		// Sync mappings
		"sync_auto":              "sync.auto_sync",
		"sync_interval":          "sync.interval",
		"sync_min_delay":         "sync.min_delay",
		"sync_max_delay":         "sync.max_delay",
		"sync_initial_delay":     "sync.initial_delay",
		"sync_batch_commit":      "sync.batch_commit_size",
		"sync_heartbeat_timeout": "sync.heartbeat_timeout",
		"sync_cleanup_interval":  "sync.cleanup_interval",

		// Media mappings
		"media_enabled":    "media.enabled",
		"media_workers":    "media.workers",
		"media_queue_size": "media.queue_size",
		"media_dir":        "media.dir",
		"media_timeout":    "media.timeout",

		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// Security mappings
		"auth_mode":           "security.auth_mode",
		"jwt_secret":          "security.jwt_secret",
		"session_timeout":     "security.session_timeout",
		"admin_username":      "security.admin_username",
		"admin_password":      "security.admin_password",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",
		"trusted_proxies":     "security.trusted_proxies",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them.
	// This prevents random environment variables from polluting config.
	return ""
}

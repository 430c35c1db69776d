// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from environment variables
// and config files.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	Platform PlatformConfig `koanf:"platform"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Media    MediaConfig    `koanf:"media"`
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// PlatformConfig holds settings for the upstream content platform API.
type PlatformConfig struct {
	BaseURL   string        `koanf:"base_url"`
	UserAgent string        `koanf:"user_agent"`
	Timeout   time.Duration `koanf:"timeout"`

	// Client-side request pacing. The platform throttles aggressively, so
	// these defaults stay well under its observed limits.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	RequestBurst      int     `koanf:"request_burst"`

	// DetailRetries is the number of attempts for a single item detail fetch
	// before the item is recorded as failed.
	DetailRetries int `koanf:"detail_retries"`

	// PageSize is the number of items requested per list page.
	PageSize int `koanf:"page_size"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"ssl_mode"`

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`

	// AutoMigrate runs schema migration at startup.
	AutoMigrate bool `koanf:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// SyncConfig holds sync orchestration settings.
type SyncConfig struct {
	// AutoSync enables the periodic background refresh of all tracked accounts.
	AutoSync bool `koanf:"auto_sync"`

	// Interval between automatic refresh runs when AutoSync is enabled.
	Interval time.Duration `koanf:"interval"`

	// Adaptive pacing bounds between item fetches.
	MinDelay     time.Duration `koanf:"min_delay"`
	MaxDelay     time.Duration `koanf:"max_delay"`
	InitialDelay time.Duration `koanf:"initial_delay"`

	// BatchCommitSize is the number of item saves between store flushes.
	BatchCommitSize int `koanf:"batch_commit_size"`

	// HeartbeatTimeout marks runs stuck in processing as failed once their
	// last heartbeat is older than this.
	HeartbeatTimeout time.Duration `koanf:"heartbeat_timeout"`

	// CleanupInterval is how often stale runs are swept.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// MediaConfig holds settings for the background media download queue.
type MediaConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Workers   int           `koanf:"workers"`
	QueueSize int           `koanf:"queue_size"`
	Dir       string        `koanf:"dir"`
	Timeout   time.Duration `koanf:"timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// APIConfig holds API pagination limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	// AuthMode selects the authentication mechanism: "jwt" or "none".
	// "none" is intended for development only.
	AuthMode string `koanf:"auth_mode"`

	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	AdminUsername  string        `koanf:"admin_username"`
	AdminPassword  string        `koanf:"admin_password"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}


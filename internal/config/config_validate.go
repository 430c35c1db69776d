// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validatePlatform(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateSync(); err != nil {
		return err
	}

	if err := c.validateMedia(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validatePlatform validates the upstream platform client configuration
func (c *Config) validatePlatform() error {
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("PLATFORM_BASE_URL is required")
	}
	if err := validateHTTPURL(c.Platform.BaseURL, "PLATFORM_BASE_URL"); err != nil {
		return fmt.Errorf("PLATFORM_BASE_URL is invalid: %w", err)
	}
	if c.Platform.RequestsPerSecond <= 0 {
		return fmt.Errorf("PLATFORM_RPS must be positive")
	}
	if c.Platform.RequestBurst < 1 {
		return fmt.Errorf("PLATFORM_BURST must be at least 1")
	}
	if c.Platform.DetailRetries < 1 || c.Platform.DetailRetries > 10 {
		return fmt.Errorf("PLATFORM_RETRIES must be between 1 and 10")
	}
	if c.Platform.PageSize < 1 || c.Platform.PageSize > 100 {
		return fmt.Errorf("PLATFORM_PAGE_SIZE must be between 1 and 100")
	}
	return nil
}

// validateDatabase validates PostgreSQL connection configuration
func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("POSTGRES_PORT must be between 1 and 65535")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	}
	if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS")
	}
	return nil
}

// Sync pacing bound constants
const (
	minSyncDelay        = time.Second
	maxSyncDelay        = time.Hour
	minHeartbeatTimeout = 30 * time.Second
)

// validateSync validates sync orchestration configuration
func (c *Config) validateSync() error {
	if c.Sync.MinDelay < minSyncDelay {
		return fmt.Errorf("SYNC_MIN_DELAY must be at least %v", minSyncDelay)
	}
	if c.Sync.MaxDelay > maxSyncDelay {
		return fmt.Errorf("SYNC_MAX_DELAY must be at most %v", maxSyncDelay)
	}
	if c.Sync.MinDelay > c.Sync.MaxDelay {
		return fmt.Errorf("SYNC_MIN_DELAY must not exceed SYNC_MAX_DELAY")
	}
	if c.Sync.InitialDelay < c.Sync.MinDelay || c.Sync.InitialDelay > c.Sync.MaxDelay {
		return fmt.Errorf("SYNC_INITIAL_DELAY must be between SYNC_MIN_DELAY and SYNC_MAX_DELAY")
	}
	if c.Sync.BatchCommitSize < 1 {
		return fmt.Errorf("SYNC_BATCH_COMMIT must be at least 1")
	}
	if c.Sync.HeartbeatTimeout < minHeartbeatTimeout {
		return fmt.Errorf("SYNC_HEARTBEAT_TIMEOUT must be at least %v", minHeartbeatTimeout)
	}
	if c.Sync.AutoSync && c.Sync.Interval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1m when SYNC_AUTO=true")
	}
	return nil
}

// validateMedia validates media download queue configuration
func (c *Config) validateMedia() error {
	if !c.Media.Enabled {
		return nil
	}
	if c.Media.Workers < 1 || c.Media.Workers > 16 {
		return fmt.Errorf("MEDIA_WORKERS must be between 1 and 16")
	}
	if c.Media.QueueSize < 1 {
		return fmt.Errorf("MEDIA_QUEUE_SIZE must be at least 1")
	}
	if c.Media.Timeout <= 0 {
		return fmt.Errorf("MEDIA_TIMEOUT must be positive")
	}
	if c.Media.Dir == "" {
		return fmt.Errorf("MEDIA_DIR is required when MEDIA_ENABLED=true")
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if err := c.validateAuthMode(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateRateLimits(); err != nil {
		return err
	}

	if c.Security.AuthMode == "jwt" {
		return c.validateJWTAuth()
	}
	return nil
}

// validAuthModes defines the allowed authentication modes
var validAuthModes = map[string]bool{
	"none": true,
	"jwt":  true,
}

// validateAuthMode checks if auth mode is valid and allowed for the environment
func (c *Config) validateAuthMode() error {
	if !validAuthModes[c.Security.AuthMode] {
		return fmt.Errorf("AUTH_MODE must be one of: none, jwt")
	}

	// Refuse to start with AUTH_MODE=none in production. This prevents
	// accidental deployment of insecure configurations.
	if c.Security.AuthMode == "none" && c.IsProduction() {
		return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production. " +
			"Either set AUTH_MODE=jwt or use ENVIRONMENT=development for testing purposes")
	}

	return nil
}

// validateCORS validates CORS configuration for security best practices.
// In production mode with authentication enabled, wildcard CORS is rejected
// as it allows any origin to access protected resources using stolen
// credentials.
func (c *Config) validateCORS() error {
	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled. " +
			"Either set specific origins: CORS_ORIGINS=https://yourdomain.com " +
			"or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration has security concerns
// that should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}

	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// minJWTSecretLength is the minimum length for a JWT secret (256 bits)
const minJWTSecretLength = 32

// validateJWTAuth validates JWT authentication configuration
func (c *Config) validateJWTAuth() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
	}
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.Security.AdminUsername == "" || c.Security.AdminPassword == "" {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required when AUTH_MODE=jwt")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
// Production mode is determined by the ENVIRONMENT environment variable.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateHTTPURL validates that a URL is properly formatted for HTTP/HTTPS services.
// Validates: scheme (http/https), host present, no paths or query params.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	// Allow trailing slash but no other paths
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}

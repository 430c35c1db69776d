// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

// Package main is the entry point for the Notetrace server application.
//
// Notetrace archives the public notes of tracked accounts on a content
// platform. It runs paginated fetches against a hostile, rate-limited API,
// classifies every per-note outcome into a sync log, and streams batch
// progress to browsers over WebSocket, SSE and polling.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Store: PostgreSQL via GORM, with optional schema auto-migration
//  3. Broadcast: WebSocket hub + SSE server behind a fan-out dispatcher
//  4. Credential guard: AES-256-GCM sealed platform session cookie
//  5. Platform client: paced HTTP client wrapped in a circuit breaker
//  6. Sync manager: batch orchestration, auto-sync and stale-run sweeping
//  7. Authentication: JWT or no-auth mode
//  8. HTTP server: REST API, WebSocket and SSE endpoints, Prometheus metrics
//
// All long-running components are managed by a suture supervisor tree with
// automatic restart and graceful shutdown.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (see .env.example)
//   - Config file (config.yaml)
//   - Built-in defaults
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/notetrace/internal/api"
	"github.com/tomtom215/notetrace/internal/auth"
	"github.com/tomtom215/notetrace/internal/broadcast"
	"github.com/tomtom215/notetrace/internal/config"
	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/middleware"
	"github.com/tomtom215/notetrace/internal/remote"
	"github.com/tomtom215/notetrace/internal/store"
	"github.com/tomtom215/notetrace/internal/supervisor"
	"github.com/tomtom215/notetrace/internal/supervisor/services"
	syncpkg "github.com/tomtom215/notetrace/internal/sync"
)

const performanceWindowSize = 1000

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Notetrace with supervisor tree")
	logging.Info().
		Str("platform_url", cfg.Platform.BaseURL).
		Str("db_host", cfg.Database.Host).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("auto_sync", cfg.Sync.AutoSync).
		Msg("Configuration loaded")

	// Initialize PostgreSQL store
	st, err := store.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Msg("Store initialized successfully")

	// Broadcast transports behind one dispatcher so sync code publishes once.
	hub := broadcast.NewHub()
	sseServer := broadcast.NewSSEServer()
	events := broadcast.NewDispatcher(hub, sseServer)

	// Credential guard seals the platform session cookie at rest. The
	// encryption key is derived from the JWT secret, so a secret is required
	// even when API authentication is disabled.
	encryptor, err := config.NewCredentialEncryptor(cfg.Security.JWTSecret)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize credential encryptor (set SECURITY_JWT_SECRET)")
	}
	guard := syncpkg.NewCredentialGuard(st, encryptor, events)

	// Platform client: client-side pacing plus a circuit breaker so a
	// misbehaving upstream trips fast instead of piling up timeouts.
	httpClient := remote.NewHTTPClient(remote.Config{
		BaseURL:           cfg.Platform.BaseURL,
		UserAgent:         cfg.Platform.UserAgent,
		Timeout:           cfg.Platform.Timeout,
		RequestsPerSecond: cfg.Platform.RequestsPerSecond,
		RequestBurst:      cfg.Platform.RequestBurst,
		PageSize:          cfg.Platform.PageSize,
		Cookie:            guard.Cookie,
	})
	client := remote.NewBreakerClient(httpClient)

	// Media archival is optional; a nil archiver skips downloads entirely.
	var media syncpkg.MediaArchiver
	if cfg.Media.Enabled {
		media = syncpkg.NewMediaManager(client, st, cfg.Media)
		logging.Info().
			Str("dir", cfg.Media.Dir).
			Int("workers", cfg.Media.Workers).
			Msg("Media archival enabled")
	} else {
		logging.Info().Msg("Media archival disabled (MEDIA_ENABLED=false)")
	}

	manager := syncpkg.NewManager(st, client, events, guard, media, cfg)

	var jwtManager *auth.JWTManager
	var verifier *auth.PasswordVerifier

	switch cfg.Security.AuthMode {
	case "jwt":
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		verifier, err = auth.NewPasswordVerifier(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize password verifier")
		}
		logging.Info().Msg("JWT authentication enabled")
	case "none":
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("All endpoints are publicly accessible. Never use this mode on public networks.")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (RATE_LIMIT_DISABLED=true)")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS is configured with a wildcard origin while authentication is enabled")
		logging.Warn().Msg("Any website can make cross-origin requests to this API. Set explicit CORS_ORIGINS in production.")
	}

	perf := middleware.NewPerformanceMonitor(performanceWindowSize)

	handler := api.NewHandler(api.HandlerDeps{
		Accounts:   st,
		Notes:      st,
		Sync:       manager,
		Credential: guard,
		Pinger:     st,
		Breaker:    client,
		Hub:        hub,
		SSE:        sseServer,
		Perf:       perf,
		JWT:        jwtManager,
		Verifier:   verifier,
		Config:     cfg,
	})

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Security.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Security.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Security.RateLimitDisabled

	router := api.NewRouter(handler, api.NewChiMiddleware(mwCfg), jwtManager)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddSyncService(services.NewSyncManagerService(manager))
	tree.AddMessagingService(services.NewBroadcastHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
Package supervisor provides process supervision for Notetrace using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of all long-running services in the application. It provides
Erlang/OTP-style supervision with automatic restart, failure isolation, and
graceful shutdown.

# Overview

The supervisor tree organizes services into three layers for failure isolation:

	RootSupervisor ("notetrace")
	├── SyncSupervisor ("sync-layer")
	│   └── SyncManagerService (auto-sync trigger + stale-run sweeper)
	├── MessagingSupervisor ("messaging-layer")
	│   └── BroadcastHubService (WebSocket fan-out)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

This hierarchy ensures that:
  - A crash in the sync scheduler doesn't tear down WebSocket connections
  - Broadcast failures don't impact API availability
  - Each layer has independent failure counting and backoff

# Key Features

Automatic Restart:
  - Crashed services are automatically restarted
  - Exponential backoff prevents restart storms
  - Configurable failure thresholds and decay rates

Graceful Shutdown:
  - Context cancellation triggers orderly shutdown
  - Configurable shutdown timeout per service
  - UnstoppedServiceReport for debugging hangs

Structured Logging:
  - Supervision events flow through slog via the sutureslog adapter
  - Logs service starts, stops, failures, and restarts

# Usage Example

Basic setup in main.go:

	logger := slog.New(logging.NewSlogHandler())
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to build supervisor tree")
	}

	tree.AddSyncService(services.NewSyncManagerService(manager))
	tree.AddMessagingService(services.NewBroadcastHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}
*/
package supervisor

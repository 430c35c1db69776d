// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

// Package api provides the HTTP surface of Notetrace using the Chi router.
//
// The package exposes account management, sync orchestration (run, stop,
// status, per-account sync logs), note browsing with CSV export, platform
// credential management, and live progress streaming over WebSocket and SSE.
// All handlers respond with the models.APIResponse envelope.
package api

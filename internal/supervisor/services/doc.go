// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

// Package services contains suture.Service wrappers for the long-running
// components of Notetrace: the HTTP server, the WebSocket broadcast hub,
// and the sync manager.
//
// Each wrapper adapts a component's lifecycle to suture's context-aware
// Serve pattern and implements fmt.Stringer so supervision events carry a
// stable service name.
package services

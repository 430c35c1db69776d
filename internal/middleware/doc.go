// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

// Package middleware provides HTTP middleware for the API server:
// request ID propagation, gzip compression, Prometheus instrumentation,
// and in-process performance monitoring.
package middleware

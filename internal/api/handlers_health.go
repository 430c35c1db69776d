// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package api

import (
	"net/http"
	"strings"
	"time"
)

var startTime = time.Now()

// HealthLive is the liveness probe. It answers as long as the process can
// serve HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
	})
}

// HealthReady is the readiness probe. It fails when the database is
// unreachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Database unreachable", err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
	})
}

// Health returns the full component health view: database connectivity,
// sync batch activity, WebSocket client count, and the remote client
// circuit breaker state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	dbStatus := "up"
	if err := h.pinger.Ping(); err != nil {
		dbStatus = "down"
		status = http.StatusServiceUnavailable
	}

	breakerState := "disabled"
	if h.breaker != nil {
		breakerState = strings.ToLower(h.breaker.State().String())
	}

	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}

	respondData(w, status, map[string]interface{}{
		"database":          dbStatus,
		"sync_active":       h.sync.Active(),
		"websocket_clients": clients,
		"circuit_breaker":   breakerState,
		"uptime_seconds":    int64(time.Since(startTime).Seconds()),
	})
}

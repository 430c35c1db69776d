// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/notetrace/internal/broadcast"
	"github.com/tomtom215/notetrace/internal/logging"
)

// upgrader upgrades HTTP connections to WebSocket. Origin is enforced by
// the CORS middleware in front of the route, so CheckOrigin accepts what
// reaches the handler.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocket upgrades the connection and registers the client with the
// event hub. The client receives all events until it sends a subscribe
// command narrowing to specific accounts.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_AVAILABLE", "WebSocket streaming is not enabled", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	client := broadcast.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// SSE streams events over Server-Sent Events. An account_id query
// parameter narrows the stream to one account.
func (h *Handler) SSE(w http.ResponseWriter, r *http.Request) {
	if h.sse == nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_AVAILABLE", "Event streaming is not enabled", nil)
		return
	}

	h.sse.ServeHTTP(w, r)
}

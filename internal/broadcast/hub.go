// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
hub.go - WebSocket push transport

The hub owns the set of connected WebSocket clients and fans events out to
the ones whose subscription matches. Publish never blocks: the hub inbox and
each client's outbox are bounded, and a client that cannot keep up is
disconnected rather than allowed to stall the rest.
*/

package broadcast

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/metrics"
)

// Hub maintains active WebSocket clients and broadcasts events to them.
type Hub struct {
	clients    map[*Client]bool
	inbox      chan Event
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub with a bounded inbox.
func NewHub() *Hub {
	return &Hub{
		inbox:      make(chan Event, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

var _ Broadcaster = (*Hub)(nil)

// Publish queues an event for fan-out. Never blocks; drops with a warning
// when the inbox is full.
func (h *Hub) Publish(event Event) {
	select {
	case h.inbox <- event:
	default:
		metrics.WebSocketErrors.Inc()
		logging.Warn().Str("event_type", event.Type).Msg("websocket hub inbox full, dropping event")
	}
}

// Serve runs the hub until ctx ends. Implements suture.Service.
//
// Selection is priority-ordered so client state is consistent before any
// event is delivered: shutdown first, then lifecycle, then events. Go's
// select picks randomly among ready channels, so each priority gets its own
// non-blocking check.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case event := <-h.inbox:
			h.deliver(event)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// deliver sends an event to every subscribed client in a deterministic
// order. Clients with a full outbox are dropped.
func (h *Hub) deliver(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- event:
			metrics.WebSocketMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WebSocketErrors.Inc()
		logging.Warn().Uint64("client_id", client.id).Msg("websocket client outbox full, disconnecting")
	}
	if len(toRemove) > 0 {
		metrics.WebSocketConnections.Set(float64(len(h.clients)))
	}
}

// shutdown closes every client and logs the reason. Context cancellation is
// the expected shutdown path, so it is not logged as an error.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	metrics.WebSocketConnections.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/notetrace/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// clientIDCounter gives clients a stable sort key so fan-out order is
// deterministic across runs.
var clientIDCounter atomic.Uint64

// clientCommand is the inbound message shape from the frontend.
type clientCommand struct {
	Type       string   `json:"type"`
	AccountIDs []string `json:"accountIds,omitempty"`
}

const (
	commandPing      = "ping"
	commandSubscribe = "subscribe"
)

// Client bridges one WebSocket connection and the hub.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Event

	// subs holds the account IDs this client follows; nil means all.
	subMu sync.RWMutex
	subs  map[string]struct{}
}

// NewClient wraps an upgraded connection. A fresh client receives events for
// all accounts until it sends a subscribe command.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Event, 256),
	}
}

// wants reports whether the client's subscription matches the event.
// Events without an account ID (batch, credential) go to everyone.
func (c *Client) wants(event Event) bool {
	if event.AccountID == "" {
		return true
	}
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if c.subs == nil {
		return true
	}
	_, ok := c.subs[event.AccountID]
	return ok
}

// subscribe replaces the client's account filter. An empty list restores
// the follow-everything default.
func (c *Client) subscribe(accountIDs []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if len(accountIDs) == 0 {
		c.subs = nil
		return
	}
	c.subs = make(map[string]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		c.subs[id] = struct{}{}
	}
}

// readPump consumes client commands until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd clientCommand
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			return
		}

		switch cmd.Type {
		case commandPing:
			select {
			case c.send <- NewEvent("pong", "", nil):
			default:
			}
		case commandSubscribe:
			c.subscribe(cmd.AccountIDs)
			logging.Debug().Uint64("client_id", c.id).Int("accounts", len(cmd.AccountIDs)).Msg("websocket subscription updated")
		}
	}
}

// writePump delivers events and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				logging.Error().Err(err).Msg("failed to write event")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins the client's pumps after registration.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
event.go - unified progress event model

Every transport (WebSocket push, SSE stream, polling snapshot) consumes the
same Event values. Producers publish once; the dispatcher fans out to
whatever transports are attached.
*/

package broadcast

import (
	"time"

	"github.com/goccy/go-json"
)

// Event types emitted by the sync engine and credential monitor.
const (
	EventSyncProgress      = "sync_progress"
	EventSyncComplete      = "sync_complete"
	EventSyncError         = "sync_error"
	EventBatchStarted      = "batch_started"
	EventBatchComplete     = "batch_complete"
	EventBatchAborted      = "batch_aborted"
	EventAccountsUpdate    = "accounts_update"
	EventCredentialInvalid = "credential_invalid"
	EventCredentialLimited = "credential_rate_limited"
)

// Event is one broadcastable occurrence. AccountID is empty for batch-level
// and credential events; transports use it for per-account subscriptions.
type Event struct {
	Type      string      `json:"type"`
	AccountID string      `json:"accountId,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, accountID string, payload interface{}) Event {
	return Event{
		Type:      eventType,
		AccountID: accountID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Marshal serializes the event for wire transports. Serialization happens
// once per event, not per subscriber.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Broadcaster fans events out to connected consumers. Implementations must
// never block the publisher; slow consumers get dropped or skipped.
type Broadcaster interface {
	Publish(event Event)
}

// NopBroadcaster discards all events. Used when no transport is attached,
// e.g. in tests or CLI-only runs.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(Event) {}

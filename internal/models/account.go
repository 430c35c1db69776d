// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

// Package models defines data structures used throughout the Notetrace
// application. These models represent tracked accounts, their notes, the
// shared platform credential, and per-run sync logs.

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// SyncStatus is the lifecycle state of an account's synchronization.
type SyncStatus string

const (
	StatusIdle       SyncStatus = "idle"
	StatusPending    SyncStatus = "pending"
	StatusProcessing SyncStatus = "processing"
	StatusCompleted  SyncStatus = "completed"
	StatusFailed     SyncStatus = "failed"
)

// SyncMode selects the cost/quality tier of a sync run.
//
// Fast mode refreshes aggregate counters from the first list page(s) only
// and issues O(1) remote calls per account. Deep mode paginates the full
// catalog and backfills item detail, issuing O(n) remote calls.
type SyncMode string

const (
	ModeFast SyncMode = "fast"
	ModeDeep SyncMode = "deep"
)

// ParseSyncMode validates a mode string from the API layer.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case ModeFast, ModeDeep:
		return SyncMode(s), nil
	case "":
		return ModeFast, nil
	default:
		return "", fmt.Errorf("invalid sync mode %q: must be fast or deep", s)
	}
}

// Account represents a tracked publisher on the remote content platform.
//
// Status, Progress, LoadedItems and TotalItems describe the current or most
// recent sync run. Progress is reset to 0 exactly when Status transitions
// into processing. SyncLogRaw holds the serialized SyncLog of the most recent
// run and is replaced atomically when a run finishes.
//
// Deletes are permanent. A soft-delete column would keep the PlatformUserID
// unique index covering dead rows and block re-tracking the same publisher.
type Account struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PlatformUserID string `gorm:"uniqueIndex;not null" json:"platform_user_id"`
	Nickname       string `json:"nickname"`
	AvatarURL      string `json:"avatar_url,omitempty"`

	Status       SyncStatus `gorm:"default:'idle';index" json:"status"`
	Progress     int        `gorm:"default:0" json:"progress"`
	TotalItems   int        `gorm:"default:0" json:"total_items"`
	LoadedItems  int        `gorm:"default:0" json:"loaded_items"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`

	// LastHeartbeat is bumped while a run is processing so that runs
	// orphaned by a crash can be swept.
	LastHeartbeat *time.Time `json:"-"`

	SyncLogRaw []byte `gorm:"column:sync_log;type:jsonb" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// SyncLog deserializes the most recent sync log, or nil if none exists.
func (a *Account) SyncLog() (*SyncLog, error) {
	if len(a.SyncLogRaw) == 0 {
		return nil, nil
	}
	var sl SyncLog
	if err := json.Unmarshal(a.SyncLogRaw, &sl); err != nil {
		return nil, fmt.Errorf("failed to decode sync log for account %s: %w", a.ID, err)
	}
	return &sl, nil
}

// SetSyncLog serializes and attaches a sync log to the account.
func (a *Account) SetSyncLog(sl *SyncLog) error {
	if sl == nil {
		a.SyncLogRaw = nil
		return nil
	}
	raw, err := json.Marshal(sl)
	if err != nil {
		return fmt.Errorf("failed to encode sync log for account %s: %w", a.ID, err)
	}
	a.SyncLogRaw = raw
	return nil
}

// StatusSnapshot is the lightweight polling view of an account's sync state.
// It deliberately excludes the SyncLog payload to bound response size.
type StatusSnapshot struct {
	ID           string     `json:"id"`
	Status       SyncStatus `json:"status"`
	Progress     int        `json:"progress"`
	LoadedItems  int        `json:"loaded_items"`
	TotalItems   int        `json:"total_items"`
	ErrorMessage string     `json:"error_message,omitempty"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
}

// Snapshot projects the account onto its polling view.
func (a *Account) Snapshot() StatusSnapshot {
	return StatusSnapshot{
		ID:           a.ID,
		Status:       a.Status,
		Progress:     a.Progress,
		LoadedItems:  a.LoadedItems,
		TotalItems:   a.TotalItems,
		ErrorMessage: a.ErrorMessage,
		LastSyncAt:   a.LastSyncAt,
	}
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package models

import (
	"time"
)

// Credential holds the shared platform session cookie used by all sync runs.
// EncryptedValue is sealed with the application's credential encryptor and
// never leaves the server in plaintext.
//
// There is a single active credential row; all tracked accounts share it,
// which is why an authorization failure on one account fails the whole batch.
type Credential struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	EncryptedValue string `gorm:"not null" json:"-"`

	Valid         bool   `gorm:"default:true" json:"valid"`
	InvalidReason string `json:"invalid_reason,omitempty"`

	// Rate-limit advisory state, per-batch. Reset when a new batch starts.
	RateLimitCount  int        `gorm:"default:0" json:"rate_limit_count"`
	LastRateLimitAt *time.Time `json:"last_rate_limit_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Credential) TableName() string {
	return "credentials"
}

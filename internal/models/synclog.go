// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// IssueType is the outcome category of one item attempt during a sync run.
type IssueType string

const (
	IssueRateLimited  IssueType = "rateLimited"
	IssueUnavailable  IssueType = "unavailable"
	IssueMissingField IssueType = "missingField"
	IssueFetchFailed  IssueType = "fetchFailed"
	IssueTokenRefresh IssueType = "tokenRefresh"
	IssueMediaFailed  IssueType = "mediaFailed"
)

// Issue records one non-success outcome for one item attempt.
type Issue struct {
	Type    IssueType      `json:"type"`
	ItemID  string         `json:"item_id,omitempty"`
	Time    time.Time      `json:"time"`
	Message string         `json:"message"`
	Fields  []string       `json:"fields,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Summary maps outcome categories to counts for one run.
type Summary struct {
	Success      int `json:"success"`
	Skipped      int `json:"skipped"`
	RateLimited  int `json:"rateLimited"`
	Unavailable  int `json:"unavailable"`
	MissingField int `json:"missingField"`
	FetchFailed  int `json:"fetchFailed"`
	TokenRefresh int `json:"tokenRefresh"`
	MediaFailed  int `json:"mediaFailed"`
	Total        int `json:"total"`
}

// ItemAttempts counts the item attempts classified during the run.
// Out-of-band categories (tokenRefresh, mediaFailed) are excluded because
// they never consume an item attempt.
func (s Summary) ItemAttempts() int {
	return s.Success + s.Skipped + s.RateLimited + s.Unavailable + s.MissingField + s.FetchFailed
}

// SyncLog is the per-run record of a single account synchronization.
// It is append-only while the run is live and immutable once EndTime is set.
type SyncLog struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Mode      SyncMode  `json:"mode"`
	Summary   Summary   `json:"summary"`
	Issues    []Issue   `json:"issues"`

	// Truncated is set when the issue list hit its cap and later issues
	// were counted in the summary but not retained.
	Truncated bool `json:"truncated,omitempty"`
}

// MarshalSyncLog serializes a run record for the account's sync_log column.
func MarshalSyncLog(sl SyncLog) ([]byte, error) {
	return json.Marshal(sl)
}

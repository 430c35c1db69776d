// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
classifier.go - per-item outcome classification

Maps the result of one detail fetch attempt to exactly one outcome. Rules are
checked in a fixed order so an error carrying multiple signals (e.g. a rate
limit hit during the final retry) lands in a single deterministic category.
*/

package sync

import (
	"github.com/tomtom215/notetrace/internal/models"
	"github.com/tomtom215/notetrace/internal/remote"
)

// Outcome is the terminal classification of one item within a run.
type Outcome struct {
	Type models.IssueType
	// OK marks the item as successfully synced; Type is unset.
	OK bool
	// Skipped marks an item left untouched because it was already complete.
	Skipped bool
	// Auth signals the credential was rejected. The item is not counted;
	// the whole batch aborts.
	Auth bool
	// MissingFields lists required detail fields absent from an otherwise
	// successful response.
	MissingFields []string
	// Message carries the upstream error text for the issue record.
	Message string
}

// requiredDetailFields are the fields a detail response must carry for the
// stored note to be marked complete.
func missingDetailFields(detail *remote.ItemDetail) []string {
	var missing []string
	if detail.Title == "" {
		missing = append(missing, "title")
	}
	if detail.PublishTime == nil {
		missing = append(missing, "publishTime")
	}
	if len(detail.MediaURLs) == 0 {
		missing = append(missing, "mediaUrls")
	}
	return missing
}

// ClassifyFetch maps a failed detail fetch to an outcome. err is the error
// from the final attempt, after retries were exhausted for transient and
// rate-limited failures.
func ClassifyFetch(err error) Outcome {
	switch {
	case remote.IsRateLimited(err):
		return Outcome{Type: models.IssueRateLimited, Message: err.Error()}
	case remote.IsUnavailable(err):
		return Outcome{Type: models.IssueUnavailable, Message: err.Error()}
	case remote.IsUnauthorized(err):
		return Outcome{Auth: true, Message: err.Error()}
	default:
		return Outcome{Type: models.IssueFetchFailed, Message: err.Error()}
	}
}

// ClassifyDetail maps a successful detail response to an outcome.
func ClassifyDetail(detail *remote.ItemDetail) Outcome {
	if missing := missingDetailFields(detail); len(missing) > 0 {
		return Outcome{Type: models.IssueMissingField, MissingFields: missing}
	}
	return Outcome{OK: true}
}

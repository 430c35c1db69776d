// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
collector.go - per-run issue aggregation

One Collector lives for the duration of one account's run. It accumulates
classified outcomes into the run's summary, keeps a bounded list of concrete
issue records, and freezes into a models.SyncLog at close.
*/

package sync

import (
	"time"

	"github.com/tomtom215/notetrace/internal/models"
)

// maxIssues caps the detailed issue list per run. Counts in the summary keep
// accumulating past the cap; only the itemized records stop.
const maxIssues = 200

// Collector accumulates outcomes for a single account run. Not safe for
// concurrent use; a run processes items sequentially.
type Collector struct {
	log       models.SyncLog
	truncated int
}

// NewCollector opens a collector for a run in the given mode.
func NewCollector(mode models.SyncMode) *Collector {
	return &Collector{
		log: models.SyncLog{
			StartTime: time.Now().UTC(),
			Mode:      mode,
		},
	}
}

// Success records a cleanly synced item.
func (c *Collector) Success() {
	c.log.Summary.Success++
}

// Skipped records an item bypassed because it was already complete.
func (c *Collector) Skipped() {
	c.log.Summary.Skipped++
}

// Record books a classified failure outcome against an item. Auth outcomes
// are not counted here; they abort the run and are handled by the caller.
func (c *Collector) Record(itemID string, outcome Outcome) {
	issue := models.Issue{
		Type:    outcome.Type,
		ItemID:  itemID,
		Time:    time.Now().UTC(),
		Message: outcome.Message,
		Fields:  outcome.MissingFields,
	}

	switch outcome.Type {
	case models.IssueRateLimited:
		c.log.Summary.RateLimited++
	case models.IssueUnavailable:
		c.log.Summary.Unavailable++
	case models.IssueMissingField:
		c.log.Summary.MissingField++
	case models.IssueFetchFailed:
		c.log.Summary.FetchFailed++
	default:
		return
	}

	c.append(issue)
}

// TokenRefresh books an out-of-band silent credential refresh. Does not
// count as an item attempt.
func (c *Collector) TokenRefresh() {
	c.log.Summary.TokenRefresh++
	c.append(models.Issue{
		Type: models.IssueTokenRefresh,
		Time: time.Now().UTC(),
	})
}

// MediaFailed books an out-of-band media download failure. The owning item
// still counts under whatever outcome its detail fetch produced.
func (c *Collector) MediaFailed(itemID, mediaURL, message string) {
	c.log.Summary.MediaFailed++
	c.append(models.Issue{
		Type:    models.IssueMediaFailed,
		ItemID:  itemID,
		Time:    time.Now().UTC(),
		Message: message,
		Extra:   map[string]any{"url": mediaURL},
	})
}

func (c *Collector) append(issue models.Issue) {
	if len(c.log.Issues) >= maxIssues {
		c.truncated++
		return
	}
	c.log.Issues = append(c.log.Issues, issue)
}

// Summary returns the counts accumulated so far.
func (c *Collector) Summary() models.Summary {
	return c.log.Summary
}

// ItemAttempts returns how many items have been resolved so far.
func (c *Collector) ItemAttempts() int {
	return c.log.Summary.ItemAttempts()
}

// Close freezes the collector into its final SyncLog. Further mutation is
// a programming error.
func (c *Collector) Close() models.SyncLog {
	c.log.EndTime = time.Now().UTC()
	c.log.Truncated = c.truncated > 0
	c.log.Summary.Total = c.log.Summary.ItemAttempts()
	return c.log
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
runner.go - single-account sync run

A runner executes one account's run end to end: profile refresh, paginated
catalog listing, and (in deep mode) detail backfill for incomplete notes.
All store writes go through the run-scoped methods so each transition is a
single atomic UPDATE, and progress is reported through the broadcaster after
every persisted change.
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/tomtom215/notetrace/internal/broadcast"
	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/models"
	"github.com/tomtom215/notetrace/internal/remote"
)

// errStopped aborts a run because an operator requested a stop.
var errStopped = errors.New("stopped by operator")

// errCredentialRejected aborts the whole batch: the shared credential is
// dead, so no further account can succeed.
var errCredentialRejected = errors.New("credential rejected by platform")

// errStoreFailed aborts the whole batch: a persistence failure means every
// subsequent run would hit the same database.
var errStoreFailed = errors.New("store operation failed")

// RunStore is the subset of store operations a run needs.
type RunStore interface {
	BeginRun(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, id, nickname, avatarURL string) error
	UpdateRunProgress(ctx context.Context, id string, progress, loaded, total int) error
	CompleteRun(ctx context.Context, id string, syncLogRaw []byte, loaded, total, progress int) error
	FailRun(ctx context.Context, id, errorMessage string, syncLogRaw []byte) error
	UpsertNotes(ctx context.Context, notes []models.Note) error
	SaveNoteDetail(ctx context.Context, n *models.Note) error
	CompleteNoteIDs(ctx context.Context, accountID string) (map[string]bool, error)
}

// MediaFailure describes one media asset that could not be archived.
type MediaFailure struct {
	URL     string
	Message string
}

// MediaArchiver downloads a note's media to local storage. Archive blocks
// until every URL is resolved so failures land in the owning run's record;
// implementations may fan the URLs out internally. nil disables archival.
type MediaArchiver interface {
	Archive(ctx context.Context, accountID, noteID string, urls []string) []MediaFailure
}

// runner drives one account through one run.
type runner struct {
	store       RunStore
	client      remote.Client
	pacer       *Pacer
	events      broadcast.Broadcaster
	media       MediaArchiver
	retries     int
	batchCommit int

	lastProgress int
	// summary holds the final counts once run returns.
	summary models.Summary
}

// progressOf computes a clamped whole percentage.
func progressOf(loaded, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(loaded) / float64(total)))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// progress returns the non-decreasing progress value for the run.
func (r *runner) progress(loaded, total int) int {
	p := progressOf(loaded, total)
	if p < r.lastProgress {
		return r.lastProgress
	}
	r.lastProgress = p
	return p
}

func (r *runner) publishProgress(account *models.Account, status models.SyncStatus, progress, loaded, total int) {
	r.events.Publish(broadcast.NewEvent(broadcast.EventSyncProgress, account.ID, map[string]interface{}{
		"accountId":   account.ID,
		"status":      status,
		"progress":    progress,
		"loadedItems": loaded,
		"totalItems":  total,
	}))
}

// run executes the account's sync and persists its terminal state. The
// returned error is nil for a completed run (even one whose summary is all
// failures); errStopped and errCredentialRejected propagate for the manager
// to handle batch-wide.
func (r *runner) run(token *batchToken, account *models.Account, mode models.SyncMode) error {
	ctx := token.ctx
	collector := NewCollector(mode)

	if err := r.store.BeginRun(ctx, account.ID); err != nil {
		return fmt.Errorf("%w: begin run: %v", errStoreFailed, err)
	}
	r.lastProgress = 0
	r.publishProgress(account, models.StatusProcessing, 0, 0, 0)

	loaded, total, runErr := r.execute(token, account, mode, collector)
	syncLog := collector.Close()
	r.summary = syncLog.Summary
	raw, marshalErr := models.MarshalSyncLog(syncLog)
	if marshalErr != nil {
		logging.Error().Err(marshalErr).Str("account_id", account.ID).Msg("Failed to marshal sync log")
		raw = nil
	}

	if runErr == nil && token.Stopped() {
		// The stop request may land while the final item's failure was being
		// classified; a stopped run never completes.
		runErr = errStopped
	}

	switch {
	case runErr == nil:
		// A run that resolved every item completes, whatever the mix of
		// outcomes; loadedItems matches totalItems and progress pins to 100.
		if err := r.store.CompleteRun(ctx, account.ID, raw, loaded, total, 100); err != nil {
			return fmt.Errorf("%w: persist completed run: %v", errStoreFailed, err)
		}
		r.events.Publish(broadcast.NewEvent(broadcast.EventSyncComplete, account.ID, map[string]interface{}{
			"accountId":   account.ID,
			"status":      models.StatusCompleted,
			"progress":    100,
			"loadedItems": loaded,
			"totalItems":  total,
			"summary":     syncLog.Summary,
		}))
		return nil

	case errors.Is(runErr, errStopped), errors.Is(runErr, errCredentialRejected):
		// Terminal state written batch-wide by the manager; keep the partial
		// sync log out of the record since the run did not finish.
		return runErr

	case errors.Is(runErr, errStoreFailed):
		// Best-effort terminal write, then escalate so the manager aborts
		// the batch instead of pouring more work into a broken database.
		msg := runErr.Error()
		if err := r.store.FailRun(context.WithoutCancel(ctx), account.ID, msg, raw); err != nil {
			logging.Error().Err(err).Str("account_id", account.ID).Msg("Failed to persist failed run")
		}
		return runErr

	default:
		msg := runErr.Error()
		if err := r.store.FailRun(context.WithoutCancel(ctx), account.ID, msg, raw); err != nil {
			logging.Error().Err(err).Str("account_id", account.ID).Msg("Failed to persist failed run")
		}
		r.events.Publish(broadcast.NewEvent(broadcast.EventSyncError, account.ID, map[string]interface{}{
			"accountId":    account.ID,
			"status":       models.StatusFailed,
			"errorMessage": msg,
		}))
		return nil
	}
}

// execute performs the fetch work and returns final loaded/total counters.
func (r *runner) execute(token *batchToken, account *models.Account, mode models.SyncMode, collector *Collector) (int, int, error) {
	ctx := token.ctx

	profile, err := r.fetchProfileWithRetry(ctx, account.PlatformUserID)
	if err != nil {
		return 0, 0, r.abortOrFail(token, err, "profile fetch failed")
	}
	if err := r.store.UpdateProfile(ctx, account.ID, profile.Nickname, profile.AvatarURL); err != nil {
		return 0, 0, fmt.Errorf("%w: store profile: %v", errStoreFailed, err)
	}

	items, err := r.fetchCatalog(token, account, mode, collector, profile.NoteCount)
	if err != nil {
		return 0, 0, err
	}

	if mode == models.ModeFast {
		total := len(items)
		return total, total, nil
	}

	return r.backfillDetails(token, account, items, collector)
}

// fetchCatalog pages through the account's note list, upserting each page.
// Returns the full list of items seen. expected is the profile's note count,
// used for progress until the real list length is known.
//
// In fast mode the listing is the whole run, so each page advances the
// progress counter. In deep mode the counter belongs to the detail backfill;
// listing only grows the reported total.
func (r *runner) fetchCatalog(token *batchToken, account *models.Account, mode models.SyncMode, collector *Collector, expected int) ([]remote.ListItem, error) {
	ctx := token.ctx
	var items []remote.ListItem
	cursor := ""

	for {
		if token.Stopped() {
			return nil, errStopped
		}
		if err := ctx.Err(); err != nil {
			return nil, r.cancelCause(token, err)
		}

		page, err := r.fetchPageWithRetry(ctx, account.PlatformUserID, cursor)
		if err != nil {
			return nil, r.abortOrFail(token, err, "catalog page fetch failed")
		}
		if page.TokenRefreshed {
			collector.TokenRefresh()
		}

		notes := make([]models.Note, 0, len(page.Items))
		for _, it := range page.Items {
			notes = append(notes, listItemToNote(account.ID, it))
		}
		if err := r.upsertChunked(ctx, notes); err != nil {
			return nil, err
		}

		items = append(items, page.Items...)

		total := expected
		if !page.HasMore || total < len(items) {
			total = len(items)
		}
		loaded, progress := len(items), 0
		if mode == models.ModeDeep {
			loaded = 0
		} else {
			progress = r.progress(loaded, total)
		}
		if err := r.store.UpdateRunProgress(ctx, account.ID, progress, loaded, total); err != nil {
			return nil, fmt.Errorf("%w: update progress: %v", errStoreFailed, err)
		}
		r.publishProgress(account, models.StatusProcessing, progress, loaded, total)

		if !page.HasMore {
			return items, nil
		}
		cursor = page.NextCursor

		if err := r.pacer.Wait(ctx); err != nil {
			return nil, r.cancelCause(token, err)
		}
	}
}

// upsertChunked saves notes in commit-sized slices so one oversized page
// never turns into one oversized statement.
func (r *runner) upsertChunked(ctx context.Context, notes []models.Note) error {
	chunk := r.batchCommit
	if chunk < 1 {
		chunk = len(notes)
	}
	for start := 0; start < len(notes); start += chunk {
		end := start + chunk
		if end > len(notes) {
			end = len(notes)
		}
		if err := r.store.UpsertNotes(ctx, notes[start:end]); err != nil {
			return fmt.Errorf("%w: upsert notes: %v", errStoreFailed, err)
		}
	}
	return nil
}

// backfillDetails fetches full detail for every incomplete note. Items that
// are already complete are skipped without a remote call.
func (r *runner) backfillDetails(token *batchToken, account *models.Account, items []remote.ListItem, collector *Collector) (int, int, error) {
	ctx := token.ctx
	total := len(items)

	complete, err := r.store.CompleteNoteIDs(ctx, account.ID)
	if err != nil {
		return 0, total, fmt.Errorf("%w: load completion state: %v", errStoreFailed, err)
	}

	loaded := 0
	for _, item := range items {
		if token.Stopped() {
			return loaded, total, errStopped
		}
		if err := ctx.Err(); err != nil {
			return loaded, total, r.cancelCause(token, err)
		}

		if complete[item.ID] {
			collector.Skipped()
			loaded++
			r.reportItemProgress(ctx, account, loaded, total)
			continue
		}

		if err := r.pacer.Wait(ctx); err != nil {
			return loaded, total, r.cancelCause(token, err)
		}

		outcome := r.syncDetail(ctx, account, item, collector)
		if outcome.Auth {
			return loaded, total, fmt.Errorf("%w: %s", errCredentialRejected, outcome.Message)
		}

		loaded++
		r.reportItemProgress(ctx, account, loaded, total)
	}

	return loaded, total, nil
}

// syncDetail resolves one item: fetch with retries, classify, persist.
func (r *runner) syncDetail(ctx context.Context, account *models.Account, item remote.ListItem, collector *Collector) Outcome {
	detail, err := r.fetchDetailWithRetry(ctx, item.ID, collector)
	if err != nil {
		outcome := ClassifyFetch(err)
		if !outcome.Auth {
			collector.Record(item.ID, outcome)
			logging.Debug().Str("note_id", item.ID).Str("issue", string(outcome.Type)).Msg("Detail fetch did not succeed")
		}
		return outcome
	}
	if detail.TokenRefreshed {
		collector.TokenRefresh()
	}

	outcome := ClassifyDetail(detail)
	if !outcome.OK {
		collector.Record(item.ID, outcome)
		// Partial detail is still worth storing; the note stays incomplete
		// so a later deep run retries it.
	} else {
		collector.Success()
		r.pacer.RecordSuccess()
	}

	note := detailToNote(account.ID, item, detail, outcome.OK)
	if err := r.store.SaveNoteDetail(ctx, &note); err != nil {
		logging.Error().Err(err).Str("note_id", item.ID).Msg("Failed to persist note detail")
	}

	if outcome.OK && r.media != nil && len(detail.MediaURLs) > 0 {
		for _, failure := range r.media.Archive(ctx, account.ID, item.ID, detail.MediaURLs) {
			collector.MediaFailed(item.ID, failure.URL, failure.Message)
		}
	}
	return outcome
}

func (r *runner) reportItemProgress(ctx context.Context, account *models.Account, loaded, total int) {
	progress := r.progress(loaded, total)
	if err := r.store.UpdateRunProgress(ctx, account.ID, progress, loaded, total); err != nil {
		logging.Warn().Err(err).Str("account_id", account.ID).Msg("Failed to update progress")
		return
	}
	r.publishProgress(account, models.StatusProcessing, progress, loaded, total)
}

// fetchDetailWithRetry retries transient and rate-limited failures with
// backoff. Other kinds fail immediately. Every retry cycle that ends in a
// rate limit still counts as a single rateLimited item for the summary.
func (r *runner) fetchDetailWithRetry(ctx context.Context, itemID string, collector *Collector) (*remote.ItemDetail, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		detail, err := r.client.FetchDetail(ctx, itemID)
		if err == nil {
			return detail, nil
		}
		lastErr = err

		if !remote.IsRateLimited(err) && !remote.IsTransient(err) {
			return nil, err
		}
		if remote.IsRateLimited(err) {
			r.pacer.RecordRateLimit()
		}
		if attempt == r.retries {
			break
		}
		if err := r.pacer.WaitBackoff(ctx, attempt); err != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// fetchPageWithRetry applies the same retry policy to catalog pages.
func (r *runner) fetchPageWithRetry(ctx context.Context, platformUserID, cursor string) (*remote.Page, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		page, err := r.client.FetchPage(ctx, platformUserID, cursor)
		if err == nil {
			r.pacer.RecordSuccess()
			return page, nil
		}
		lastErr = err

		if !remote.IsRateLimited(err) && !remote.IsTransient(err) {
			return nil, err
		}
		if remote.IsRateLimited(err) {
			r.pacer.RecordRateLimit()
		}
		if attempt == r.retries {
			break
		}
		if err := r.pacer.WaitBackoff(ctx, attempt); err != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (r *runner) fetchProfileWithRetry(ctx context.Context, platformUserID string) (*remote.Profile, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		profile, err := r.client.FetchProfile(ctx, platformUserID)
		if err == nil {
			return profile, nil
		}
		lastErr = err
		if !remote.IsRateLimited(err) && !remote.IsTransient(err) {
			return nil, err
		}
		if remote.IsRateLimited(err) {
			r.pacer.RecordRateLimit()
		}
		if attempt == r.retries {
			break
		}
		if err := r.pacer.WaitBackoff(ctx, attempt); err != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// abortOrFail translates a run-level fetch failure into the right abort
// signal: credential rejection escalates batch-wide, an operator stop wins
// over whatever error the cancellation produced, anything else fails the run.
func (r *runner) abortOrFail(token *batchToken, err error, msg string) error {
	if token.Stopped() {
		return errStopped
	}
	if remote.IsUnauthorized(err) {
		return fmt.Errorf("%w: %v", errCredentialRejected, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// cancelCause distinguishes an operator stop from shutdown cancellation.
func (r *runner) cancelCause(token *batchToken, err error) error {
	if token.Stopped() {
		return errStopped
	}
	return err
}

func listItemToNote(accountID string, it remote.ListItem) models.Note {
	return models.Note{
		ID:           it.ID,
		AccountID:    accountID,
		Title:        it.Title,
		Type:         models.NoteType(it.Type),
		LikeCount:    it.LikeCount,
		CollectCount: it.CollectCount,
		CommentCount: it.CommentCount,
		ShareCount:   it.ShareCount,
		CoverURL:     it.CoverURL,
	}
}

func detailToNote(accountID string, item remote.ListItem, detail *remote.ItemDetail, complete bool) models.Note {
	n := models.Note{
		ID:           item.ID,
		AccountID:    accountID,
		Title:        detail.Title,
		Desc:         detail.Desc,
		Type:         models.NoteType(detail.Type),
		PublishTime:  detail.PublishTime,
		LikeCount:    detail.LikeCount,
		CollectCount: detail.CollectCount,
		CommentCount: detail.CommentCount,
		ShareCount:   detail.ShareCount,
		CoverURL:     item.CoverURL,
		IsComplete:   complete,
	}
	if n.Title == "" {
		n.Title = item.Title
	}
	if detail.CoverURL != "" {
		n.CoverURL = detail.CoverURL
	}
	if err := n.SetMediaURLs(detail.MediaURLs); err != nil {
		logging.Warn().Err(err).Str("note_id", item.ID).Msg("Failed to encode media URLs")
	}
	return n
}

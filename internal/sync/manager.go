// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
manager.go - sync batch orchestration

The Manager owns the one live batch: RunSync admits a set of accounts,
processes them sequentially in the background, and rejects overlapping
batches outright. StopSync flips the batch's cancellation token and marks
every still-active account failed in one statement. A credential rejection
on any account fails the remainder of the batch without further platform
calls.

Manager also implements suture.Service: Serve runs the periodic auto-sync
trigger and the stale-run sweeper until the supervisor cancels it.
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/notetrace/internal/broadcast"
	"github.com/tomtom215/notetrace/internal/config"
	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/metrics"
	"github.com/tomtom215/notetrace/internal/models"
	"github.com/tomtom215/notetrace/internal/remote"
)

// stoppedMessage is the terminal error message written to accounts whose
// run was cancelled by an operator.
const stoppedMessage = "stopped by operator"

// ErrBatchActive rejects a RunSync that overlaps a live batch.
var ErrBatchActive = errors.New("a sync batch is already running")

// ErrNoAccounts rejects an empty batch.
var ErrNoAccounts = errors.New("no accounts selected")

// ManagerStore is the full store surface the manager and its runners need.
type ManagerStore interface {
	RunStore

	ListAccounts(ctx context.Context) ([]models.Account, error)
	LoadAccounts(ctx context.Context, ids []string) ([]models.Account, error)
	MarkPending(ctx context.Context, ids []string) error
	FailActiveAccounts(ctx context.Context, ids []string, errorMessage string) (int64, error)
	Snapshots(ctx context.Context, ids []string) ([]models.StatusSnapshot, error)
	SweepStaleRuns(ctx context.Context, timeout time.Duration) (int64, error)
}

// Manager orchestrates sync batches over tracked accounts.
type Manager struct {
	store  ManagerStore
	client remote.Client
	events broadcast.Broadcaster
	guard  *CredentialGuard
	media  MediaArchiver
	cfg    *config.Config

	// lifeCtx bounds every batch; Serve cancels it at shutdown so in-flight
	// runs unwind before the service exits.
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	mu       sync.Mutex
	current  *batchToken
	batchIDs []string
	wg       sync.WaitGroup
}

// NewManager wires a manager. events and media may be nil; guard may be nil
// when credential tracking is handled elsewhere (tests).
func NewManager(store ManagerStore, client remote.Client, events broadcast.Broadcaster, guard *CredentialGuard, media MediaArchiver, cfg *config.Config) *Manager {
	if events == nil {
		events = broadcast.NopBroadcaster{}
	}
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	m := &Manager{
		store:      store,
		client:     client,
		events:     events,
		guard:      guard,
		media:      media,
		cfg:        cfg,
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
	}

	logging.Info().
		Bool("auto_sync", cfg.Sync.AutoSync).
		Dur("interval", cfg.Sync.Interval).
		Dur("min_delay", cfg.Sync.MinDelay).
		Dur("max_delay", cfg.Sync.MaxDelay).
		Int("detail_retries", cfg.Platform.DetailRetries).
		Msg("Sync manager config loaded")

	return m
}

// RunSync starts a batch over the given accounts in the requested mode and
// returns immediately. An empty id list selects every tracked account.
// Returns ErrBatchActive if a batch is already live.
func (m *Manager) RunSync(ctx context.Context, ids []string, mode models.SyncMode) error {
	var accounts []models.Account
	var err error
	if len(ids) == 0 {
		accounts, err = m.store.ListAccounts(ctx)
	} else {
		accounts, err = m.store.LoadAccounts(ctx, ids)
	}
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	if len(accounts) == 0 {
		return ErrNoAccounts
	}

	m.mu.Lock()
	if m.current != nil && m.current.Err() == nil {
		m.mu.Unlock()
		return ErrBatchActive
	}
	token := newBatchToken(m.lifeCtx)
	m.current = token
	m.batchIDs = accountIDs(accounts)
	m.mu.Unlock()

	// All accounts go pending before the first one starts processing, so a
	// status poll issued right after RunSync returns sees the whole batch.
	if err := m.store.MarkPending(ctx, m.batchIDs); err != nil {
		m.clearBatch(token)
		return fmt.Errorf("failed to mark accounts pending: %w", err)
	}

	metrics.SyncBatchActive.Set(1)
	m.events.Publish(broadcast.NewEvent(broadcast.EventBatchStarted, "", map[string]interface{}{
		"accountIds": m.batchIDs,
		"mode":       mode,
	}))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runBatch(token, accounts, mode)
	}()

	logging.Info().Int("accounts", len(accounts)).Str("mode", string(mode)).Msg("Sync batch started")
	return nil
}

// runBatch processes the batch sequentially.
func (m *Manager) runBatch(token *batchToken, accounts []models.Account, mode models.SyncMode) {
	defer m.clearBatch(token)
	defer metrics.SyncBatchActive.Set(0)

	pacer := NewPacer(m.cfg.Sync.MinDelay, m.cfg.Sync.MaxDelay, m.cfg.Sync.InitialDelay)

	for i := range accounts {
		account := &accounts[i]
		if token.Err() != nil {
			m.failRemaining(token, accountIDs(accounts[i:]))
			return
		}

		start := time.Now()
		r := &runner{
			store:       m.store,
			client:      m.client,
			pacer:       pacer,
			events:      m.events,
			media:       m.media,
			retries:     m.cfg.Platform.DetailRetries,
			batchCommit: m.cfg.Sync.BatchCommitSize,
		}
		err := r.run(token, account, mode)

		switch {
		case err == nil:
			metrics.RecordSyncRun(string(mode), "completed", time.Since(start))
			if m.guard != nil {
				m.guard.ObserveSummary(context.WithoutCancel(token.ctx), r.summary, pacer.Base())
			}

		case errors.Is(err, errStopped):
			metrics.RecordSyncRun(string(mode), "stopped", time.Since(start))
			m.failRemaining(token, accountIDs(accounts[i:]))
			return

		case errors.Is(err, errCredentialRejected):
			metrics.RecordSyncRun(string(mode), "unauthorized", time.Since(start))
			logging.Warn().Str("account_id", account.ID).Msg("Credential rejected, failing remaining batch")
			if m.guard != nil {
				m.guard.Invalidate(context.WithoutCancel(token.ctx), err.Error())
			}
			m.failBatchOnCredential(accountIDs(accounts[i:]), err)
			return

		case errors.Is(err, errStoreFailed):
			// The database is unhealthy; every later run would hit the same
			// wall. Fail the rest of the batch and surface it distinctly.
			metrics.RecordSyncRun(string(mode), "store_error", time.Since(start))
			logging.Error().Err(err).Str("account_id", account.ID).Msg("Storage failure, aborting batch")
			m.failBatchOnStore(accountIDs(accounts[i+1:]), err)
			return

		default:
			metrics.RecordSyncRun(string(mode), "error", time.Since(start))
			logging.Error().Err(err).Str("account_id", account.ID).Msg("Account run aborted")
		}
	}

	m.events.Publish(broadcast.NewEvent(broadcast.EventBatchComplete, "", map[string]interface{}{
		"accountIds": accountIDs(accounts),
		"mode":       mode,
	}))
	logging.Info().Int("accounts", len(accounts)).Msg("Sync batch finished")
}

// StopSync cancels the live batch and fails every account still pending or
// processing in one statement. Returns the number of accounts transitioned.
func (m *Manager) StopSync(ctx context.Context) (int64, error) {
	m.mu.Lock()
	token := m.current
	ids := m.batchIDs
	m.mu.Unlock()

	if token == nil || token.Err() != nil {
		return 0, nil
	}
	token.Stop()

	stopped, err := m.store.FailActiveAccounts(ctx, ids, stoppedMessage)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stopped accounts: %w", err)
	}

	metrics.SyncStoppedAccounts.Add(float64(stopped))
	m.events.Publish(broadcast.NewEvent(broadcast.EventAccountsUpdate, "", map[string]interface{}{
		"stoppedCount": stopped,
	}))
	logging.Info().Int64("stopped", stopped).Msg("Sync batch stopped by operator")
	return stopped, nil
}

// Status returns current snapshots for the given accounts (or all tracked
// accounts if ids is empty). This is the polling transport.
func (m *Manager) Status(ctx context.Context, ids []string) ([]models.StatusSnapshot, error) {
	return m.store.Snapshots(ctx, ids)
}

// Active reports whether a batch is currently live.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.Err() == nil
}

// Serve runs periodic maintenance until ctx ends: the auto-sync trigger and
// the stale-run sweeper. Implements suture.Service.
func (m *Manager) Serve(ctx context.Context) error {
	sweep := time.NewTicker(m.cfg.Sync.CleanupInterval)
	defer sweep.Stop()

	var auto <-chan time.Time
	if m.cfg.Sync.AutoSync {
		ticker := time.NewTicker(m.cfg.Sync.Interval)
		defer ticker.Stop()
		auto = ticker.C
	}

	logging.Info().Msg("Sync manager service started")

	// Accounts left processing by a previous process are recovered
	// immediately, not on the first tick.
	m.sweepStaleRuns(ctx)

	for {
		select {
		case <-ctx.Done():
			m.lifeCancel()
			m.wg.Wait()
			logging.Info().Msg("Sync manager service stopped")
			return ctx.Err()

		case <-sweep.C:
			m.sweepStaleRuns(ctx)

		case <-auto:
			if err := m.autoSync(ctx); err != nil && !errors.Is(err, ErrBatchActive) {
				logging.Error().Err(err).Msg("Scheduled sync failed to start")
			}
		}
	}
}

// sweepStaleRuns fails accounts stuck in processing past the heartbeat
// timeout.
func (m *Manager) sweepStaleRuns(ctx context.Context) {
	swept, err := m.store.SweepStaleRuns(ctx, m.cfg.Sync.HeartbeatTimeout)
	if err != nil {
		logging.Error().Err(err).Msg("Stale run sweep failed")
		return
	}
	if swept > 0 {
		metrics.SyncStaleRunsSwept.Add(float64(swept))
		logging.Warn().Int64("swept", swept).Msg("Recovered interrupted sync runs")
	}
}

// autoSync triggers a fast-mode batch over every tracked account. Having
// nothing to track is not an error for a scheduled run.
func (m *Manager) autoSync(ctx context.Context) error {
	logging.Info().Msg("Starting scheduled sync")
	if err := m.RunSync(ctx, nil, models.ModeFast); err != nil && !errors.Is(err, ErrNoAccounts) {
		return err
	}
	return nil
}

// failRemaining marks the rest of the batch failed after an operator stop.
func (m *Manager) failRemaining(token *batchToken, ids []string) {
	if !token.Stopped() {
		// Shutdown cancellation: leave accounts for the stale-run sweeper
		// so a restart reports them as interrupted rather than stopped.
		return
	}
	if _, err := m.store.FailActiveAccounts(context.WithoutCancel(token.ctx), ids, stoppedMessage); err != nil {
		logging.Error().Err(err).Msg("Failed to mark remaining accounts stopped")
	}
}

// failBatchOnCredential fails every remaining account with the credential
// error. No further platform calls are made for them.
func (m *Manager) failBatchOnCredential(ids []string, cause error) {
	msg := fmt.Sprintf("sync aborted: %v", cause)
	failed, err := m.store.FailActiveAccounts(context.WithoutCancel(m.lifeCtx), ids, msg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to fail batch after credential rejection")
		return
	}
	m.events.Publish(broadcast.NewEvent(broadcast.EventCredentialInvalid, "", map[string]interface{}{
		"failedCount": failed,
		"reason":      cause.Error(),
	}))
}

// failBatchOnStore fails every remaining account after a persistence failure.
// The abort event goes out even when the terminal writes also fail, since the
// broadcast path does not depend on the database.
func (m *Manager) failBatchOnStore(ids []string, cause error) {
	msg := fmt.Sprintf("sync aborted: %v", cause)
	failed, err := m.store.FailActiveAccounts(context.WithoutCancel(m.lifeCtx), ids, msg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to fail batch after storage failure")
	}
	m.events.Publish(broadcast.NewEvent(broadcast.EventBatchAborted, "", map[string]interface{}{
		"failedCount": failed,
		"reason":      cause.Error(),
	}))
}

// clearBatch releases the batch slot if token is still the live batch.
func (m *Manager) clearBatch(token *batchToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == token {
		token.cancel()
		m.current = nil
		m.batchIDs = nil
	}
}

func accountIDs(accounts []models.Account) []string {
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	return ids
}

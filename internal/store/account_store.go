// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tomtom215/notetrace/internal/models"
)

// ErrAccountNotFound is returned when an account id does not exist.
var ErrAccountNotFound = errors.New("account not found")

// ErrAccountExists is returned when a platform user is already tracked.
var ErrAccountExists = errors.New("account already tracked")

// CreateAccount inserts a new tracked account.
func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	if a.Status == "" {
		a.Status = models.StatusIdle
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount loads one account by id.
func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", id, err)
	}
	return &a, nil
}

// ListAccounts returns all tracked accounts ordered by creation time.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// LoadAccounts loads the given accounts. Missing ids are silently dropped;
// callers compare lengths when they need strict existence.
func (s *Store) LoadAccounts(ctx context.Context, ids []string) ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	return accounts, nil
}

// DeleteAccounts removes accounts and their notes. Returns the number of
// accounts deleted.
func (s *Store) DeleteAccounts(ctx context.Context, ids []string) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id IN ?", ids).Delete(&models.Note{}).Error; err != nil {
			return fmt.Errorf("failed to delete notes: %w", err)
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Account{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete accounts: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

// UpdateProfile refreshes the display fields fetched from the remote profile.
func (s *Store) UpdateProfile(ctx context.Context, id, nickname, avatarURL string) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"nickname":   nickname,
			"avatar_url": avatarURL,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update profile for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// MarkPending transitions the targeted accounts to pending. Called by the
// orchestrator before the batch goroutine starts.
func (s *Store) MarkPending(ctx context.Context, ids []string) error {
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":        models.StatusPending,
			"error_message": "",
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark accounts pending: %w", err)
	}
	return nil
}

// BeginRun transitions an account into processing and resets its run
// counters. All fields change in one UPDATE so a concurrent reader never
// observes a half-applied transition.
func (s *Store) BeginRun(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         models.StatusProcessing,
			"progress":       0,
			"loaded_items":   0,
			"total_items":    0,
			"error_message":  "",
			"last_heartbeat": nowPtr(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to begin run for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// UpdateRunProgress writes the current counters for a processing account and
// bumps the heartbeat. Single UPDATE, atomic per-field-set.
func (s *Store) UpdateRunProgress(ctx context.Context, id string, progress, loaded, total int) error {
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":       progress,
			"loaded_items":   loaded,
			"total_items":    total,
			"last_heartbeat": nowPtr(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update progress for %s: %w", id, err)
	}
	return nil
}

// CompleteRun finishes a run successfully and publishes its sync log
// atomically with the status transition.
func (s *Store) CompleteRun(ctx context.Context, id string, syncLogRaw []byte, loaded, total, progress int) error {
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.StatusCompleted,
			"progress":     progress,
			"loaded_items": loaded,
			"total_items":  total,
			"last_sync_at": nowPtr(),
			"sync_log":     syncLogRaw,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to complete run for %s: %w", id, err)
	}
	return nil
}

// FailRun marks an account failed, recording the error message and whatever
// partial sync log was accumulated.
func (s *Store) FailRun(ctx context.Context, id, errorMessage string, syncLogRaw []byte) error {
	updates := map[string]interface{}{
		"status":        models.StatusFailed,
		"error_message": errorMessage,
		"last_sync_at":  nowPtr(),
	}
	if syncLogRaw != nil {
		updates["sync_log"] = syncLogRaw
	}
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to fail run for %s: %w", id, err)
	}
	return nil
}

// FailActiveAccounts fails every account currently pending or processing in
// the given set. Used for credential invalidation fail-fast and operator
// stop. Returns the number of accounts transitioned.
func (s *Store) FailActiveAccounts(ctx context.Context, ids []string, errorMessage string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id IN ? AND status IN ?", ids, []models.SyncStatus{models.StatusPending, models.StatusProcessing}).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"error_message": errorMessage,
			"last_sync_at":  nowPtr(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to fail active accounts: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Snapshots returns the lightweight status view for the given accounts, or
// all accounts when ids is empty. The sync_log column is never selected.
func (s *Store) Snapshots(ctx context.Context, ids []string) ([]models.StatusSnapshot, error) {
	q := s.db.WithContext(ctx).Model(&models.Account{}).
		Select("id", "status", "progress", "loaded_items", "total_items", "error_message", "last_sync_at").
		Order("created_at ASC")
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}

	var snaps []models.StatusSnapshot
	if err := q.Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("failed to load status snapshots: %w", err)
	}
	return snaps, nil
}

// GetSyncLog returns the most recent sync log for an account, or nil when
// the account has never completed a run.
func (s *Store) GetSyncLog(ctx context.Context, id string) (*models.SyncLog, error) {
	a, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.SyncLog()
}

// SweepStaleRuns fails accounts stuck in processing whose heartbeat is older
// than the timeout. Covers runs orphaned by a crash.
func (s *Store) SweepStaleRuns(ctx context.Context, timeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-timeout)
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)", models.StatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"error_message": "sync interrupted: heartbeat timeout",
			"last_sync_at":  nowPtr(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to sweep stale runs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

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

// ErrNoCredential is returned when no platform credential has been stored yet.
var ErrNoCredential = errors.New("no platform credential configured")

// GetCredential loads the single active credential row.
func (s *Store) GetCredential(ctx context.Context) (*models.Credential, error) {
	var c models.Credential
	err := s.db.WithContext(ctx).Order("id DESC").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return &c, nil
}

// SetCredential replaces the active credential with a freshly sealed value
// and resets its validity and rate-limit state.
func (s *Store) SetCredential(ctx context.Context, encryptedValue string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Credential{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Credential{
			EncryptedValue: encryptedValue,
			Valid:          true,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to set credential: %w", err)
	}
	return nil
}

// InvalidateCredential marks the active credential invalid with a reason.
func (s *Store) InvalidateCredential(ctx context.Context, reason string) error {
	err := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("valid = ?", true).
		Updates(map[string]interface{}{
			"valid":          false,
			"invalid_reason": reason,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to invalidate credential: %w", err)
	}
	return nil
}

// RecordCredentialRateLimit bumps the advisory rate-limit counter.
func (s *Store) RecordCredentialRateLimit(ctx context.Context) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("valid = ?", true).
		Updates(map[string]interface{}{
			"rate_limit_count":   gorm.Expr("rate_limit_count + 1"),
			"last_rate_limit_at": &now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to record credential rate limit: %w", err)
	}
	return nil
}

// ResetCredentialRateLimit clears the advisory counter at batch start.
// The cooldown is per-batch state; it does not decay across batches.
func (s *Store) ResetCredentialRateLimit(ctx context.Context) error {
	err := s.db.WithContext(ctx).Model(&models.Credential{}).
		Where("valid = ?", true).
		Updates(map[string]interface{}{
			"rate_limit_count":   0,
			"last_rate_limit_at": nil,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reset credential rate limit: %w", err)
	}
	return nil
}

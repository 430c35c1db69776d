// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
credential.go - platform credential lifecycle

The platform authenticates with a single operator-supplied session cookie
shared by all accounts. The guard stores it sealed at rest, hands the
decrypted value to the remote client per request, tracks throttling streaks,
and broadcasts invalidation so the frontend can prompt for a fresh cookie.
*/

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/notetrace/internal/broadcast"
	"github.com/tomtom215/notetrace/internal/config"
	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/models"
	"github.com/tomtom215/notetrace/internal/store"
)

// ErrCredentialInvalid is returned by Cookie when the stored credential has
// been marked rejected and needs operator replacement.
var ErrCredentialInvalid = errors.New("stored credential is marked invalid")

// CredentialStore is the persistence surface for the shared credential.
type CredentialStore interface {
	GetCredential(ctx context.Context) (*models.Credential, error)
	SetCredential(ctx context.Context, encryptedValue string) error
	InvalidateCredential(ctx context.Context, reason string) error
	RecordCredentialRateLimit(ctx context.Context) error
	ResetCredentialRateLimit(ctx context.Context) error
}

// CredentialGuard seals, serves and supervises the platform credential.
type CredentialGuard struct {
	store     CredentialStore
	encryptor *config.CredentialEncryptor
	events    broadcast.Broadcaster
}

// NewCredentialGuard wires a guard. events may be nil.
func NewCredentialGuard(store CredentialStore, encryptor *config.CredentialEncryptor, events broadcast.Broadcaster) *CredentialGuard {
	if events == nil {
		events = broadcast.NopBroadcaster{}
	}
	return &CredentialGuard{
		store:     store,
		encryptor: encryptor,
		events:    events,
	}
}

// Set seals and persists a replacement credential, clearing any previous
// invalidation state.
func (g *CredentialGuard) Set(ctx context.Context, plaintext string) error {
	if plaintext == "" {
		return errors.New("credential must not be empty")
	}
	sealed, err := g.encryptor.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to seal credential: %w", err)
	}
	if err := g.store.SetCredential(ctx, sealed); err != nil {
		return err
	}
	logging.Info().Str("credential", config.MaskCredential(plaintext)).Msg("Platform credential replaced")
	return nil
}

// Cookie returns the decrypted session cookie for the remote client.
// Satisfies remote.CookieFunc.
func (g *CredentialGuard) Cookie(ctx context.Context) (string, error) {
	cred, err := g.store.GetCredential(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoCredential) {
			return "", errors.New("no platform credential configured")
		}
		return "", err
	}
	if !cred.Valid {
		return "", fmt.Errorf("%w: %s", ErrCredentialInvalid, cred.InvalidReason)
	}
	plaintext, err := g.encryptor.Decrypt(cred.EncryptedValue)
	if err != nil {
		return "", fmt.Errorf("failed to unseal credential: %w", err)
	}
	return plaintext, nil
}

// Invalidate marks the credential rejected and notifies subscribers.
func (g *CredentialGuard) Invalidate(ctx context.Context, reason string) {
	if err := g.store.InvalidateCredential(ctx, reason); err != nil {
		logging.Error().Err(err).Msg("Failed to invalidate credential")
		return
	}
	logging.Warn().Str("reason", reason).Msg("Platform credential invalidated")
}

// ObserveSummary tracks the credential's throttling streak from a completed
// run: any rate-limited item extends the streak, a fully clean run resets it.
// cooldown is the pacer's adapted base delay at the end of the run and rides
// along on the advisory event so the frontend can suggest how long to wait.
func (g *CredentialGuard) ObserveSummary(ctx context.Context, summary models.Summary, cooldown time.Duration) {
	if summary.RateLimited > 0 {
		if err := g.store.RecordCredentialRateLimit(ctx); err != nil {
			logging.Error().Err(err).Msg("Failed to record credential rate limit")
			return
		}
		g.events.Publish(broadcast.NewEvent(broadcast.EventCredentialLimited, "", map[string]interface{}{
			"rateLimitedItems": summary.RateLimited,
			"cooldownSeconds":  cooldown.Seconds(),
		}))
		return
	}
	if err := g.store.ResetCredentialRateLimit(ctx); err != nil {
		logging.Error().Err(err).Msg("Failed to reset credential rate limit streak")
	}
}

// Status reports the credential's health for the API without exposing the
// sealed value.
func (g *CredentialGuard) Status(ctx context.Context) (map[string]interface{}, error) {
	cred, err := g.store.GetCredential(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoCredential) {
			return map[string]interface{}{"configured": false}, nil
		}
		return nil, err
	}
	return map[string]interface{}{
		"configured":     true,
		"valid":          cred.Valid,
		"invalidReason":  cred.InvalidReason,
		"rateLimitCount": cred.RateLimitCount,
	}, nil
}

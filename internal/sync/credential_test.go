// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package sync

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/notetrace/internal/broadcast"
	"github.com/tomtom215/notetrace/internal/config"
	"github.com/tomtom215/notetrace/internal/models"
	"github.com/tomtom215/notetrace/internal/store"
)

type fakeCredentialStore struct {
	mu         sync.Mutex
	cred       *models.Credential
	limitHits  int
	limitReset int
}

func (s *fakeCredentialStore) GetCredential(ctx context.Context) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, store.ErrNoCredential
	}
	copied := *s.cred
	return &copied, nil
}

func (s *fakeCredentialStore) SetCredential(ctx context.Context, encryptedValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &models.Credential{EncryptedValue: encryptedValue, Valid: true}
	return nil
}

func (s *fakeCredentialStore) InvalidateCredential(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred != nil {
		s.cred.Valid = false
		s.cred.InvalidReason = reason
	}
	return nil
}

func (s *fakeCredentialStore) RecordCredentialRateLimit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limitHits++
	if s.cred != nil {
		s.cred.RateLimitCount++
	}
	return nil
}

func (s *fakeCredentialStore) ResetCredentialRateLimit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limitReset++
	if s.cred != nil {
		s.cred.RateLimitCount = 0
	}
	return nil
}

func newTestGuard(t *testing.T) (*CredentialGuard, *fakeCredentialStore, *captureBroadcaster) {
	t.Helper()
	enc, err := config.NewCredentialEncryptor("test-jwt-secret-at-least-32-bytes!!")
	if err != nil {
		t.Fatalf("failed to build encryptor: %v", err)
	}
	cs := &fakeCredentialStore{}
	events := &captureBroadcaster{}
	return NewCredentialGuard(cs, enc, events), cs, events
}

func TestCredentialGuardRoundTrip(t *testing.T) {
	guard, cs, _ := newTestGuard(t)
	ctx := context.Background()

	if _, err := guard.Cookie(ctx); err == nil {
		t.Error("Cookie without a stored credential should fail")
	}

	if err := guard.Set(ctx, "web_session=abc123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	cs.mu.Lock()
	sealed := cs.cred.EncryptedValue
	cs.mu.Unlock()
	if strings.Contains(sealed, "abc123") {
		t.Error("credential must be sealed at rest")
	}

	cookie, err := guard.Cookie(ctx)
	if err != nil {
		t.Fatalf("Cookie failed: %v", err)
	}
	if cookie != "web_session=abc123" {
		t.Errorf("cookie = %q", cookie)
	}
}

func TestCredentialGuardRejectsEmpty(t *testing.T) {
	guard, _, _ := newTestGuard(t)
	if err := guard.Set(context.Background(), ""); err == nil {
		t.Error("empty credential should be rejected")
	}
}

func TestCredentialGuardInvalidation(t *testing.T) {
	guard, _, _ := newTestGuard(t)
	ctx := context.Background()

	if err := guard.Set(ctx, "web_session=abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	guard.Invalidate(ctx, "rejected by platform")

	if _, err := guard.Cookie(ctx); err == nil {
		t.Fatal("invalidated credential must not be served")
	}

	status, err := guard.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status["valid"] != false || status["invalidReason"] != "rejected by platform" {
		t.Errorf("status = %v", status)
	}

	// Replacing the credential restores service.
	if err := guard.Set(ctx, "web_session=fresh"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := guard.Cookie(ctx); err != nil {
		t.Errorf("fresh credential should be served, got %v", err)
	}
}

func TestCredentialGuardObserveSummary(t *testing.T) {
	guard, cs, events := newTestGuard(t)
	ctx := context.Background()
	if err := guard.Set(ctx, "web_session=abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	guard.ObserveSummary(ctx, models.Summary{RateLimited: 2, Success: 3}, 45*time.Second)
	if cs.limitHits != 1 {
		t.Errorf("limitHits = %d, want 1 (one streak entry per run)", cs.limitHits)
	}
	got := events.byType(broadcast.EventCredentialLimited)
	if len(got) != 1 {
		t.Fatalf("got %d credential_rate_limited events, want 1", len(got))
	}
	payload := got[0].Payload.(map[string]interface{})
	if payload["cooldownSeconds"] != 45.0 {
		t.Errorf("cooldownSeconds = %v, want 45 (advisory must carry a cooldown hint)", payload["cooldownSeconds"])
	}

	guard.ObserveSummary(ctx, models.Summary{Success: 5}, 5*time.Second)
	if cs.limitReset != 1 {
		t.Errorf("limitReset = %d, want 1 (clean run resets the streak)", cs.limitReset)
	}
}

func TestCredentialGuardStatusUnconfigured(t *testing.T) {
	guard, _, _ := newTestGuard(t)
	status, err := guard.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status["configured"] != false {
		t.Errorf("status = %v, want configured=false", status)
	}
}

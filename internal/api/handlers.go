// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package api

import (
	"context"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/notetrace/internal/auth"
	"github.com/tomtom215/notetrace/internal/broadcast"
	"github.com/tomtom215/notetrace/internal/config"
	"github.com/tomtom215/notetrace/internal/middleware"
	"github.com/tomtom215/notetrace/internal/models"
	"github.com/tomtom215/notetrace/internal/store"
)

// AccountStore covers the account persistence operations handlers need.
// *store.Store satisfies it.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	DeleteAccounts(ctx context.Context, ids []string) (int64, error)
	GetSyncLog(ctx context.Context, id string) (*models.SyncLog, error)
}

// NoteStore covers the note browsing and export operations.
type NoteStore interface {
	ListNotes(ctx context.Context, f store.NoteFilter) ([]models.Note, int64, error)
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ForEachFilteredNote(ctx context.Context, f store.NoteFilter, batchSize int, fn func(models.Note) error) error
}

// SyncController is the sync orchestration surface. *sync.Manager satisfies it.
type SyncController interface {
	RunSync(ctx context.Context, ids []string, mode models.SyncMode) error
	StopSync(ctx context.Context) (int64, error)
	Status(ctx context.Context, ids []string) ([]models.StatusSnapshot, error)
	Active() bool
}

// CredentialService manages the shared platform credential.
// *sync.CredentialGuard satisfies it.
type CredentialService interface {
	Set(ctx context.Context, plaintext string) error
	Status(ctx context.Context) (map[string]interface{}, error)
}

// Pinger reports storage connectivity for readiness checks.
type Pinger interface {
	Ping() error
}

// BreakerStater reports the remote client circuit breaker state.
type BreakerStater interface {
	State() gobreaker.State
}

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	accounts   AccountStore
	notes      NoteStore
	sync       SyncController
	credential CredentialService
	pinger     Pinger
	breaker    BreakerStater

	hub  *broadcast.Hub
	sse  *broadcast.SSEServer
	perf *middleware.PerformanceMonitor

	jwt      *auth.JWTManager
	verifier *auth.PasswordVerifier

	cfg *config.Config
}

// HandlerDeps bundles the constructor arguments for Handler.
type HandlerDeps struct {
	Accounts   AccountStore
	Notes      NoteStore
	Sync       SyncController
	Credential CredentialService
	Pinger     Pinger
	Breaker    BreakerStater

	Hub  *broadcast.Hub
	SSE  *broadcast.SSEServer
	Perf *middleware.PerformanceMonitor

	JWT      *auth.JWTManager
	Verifier *auth.PasswordVerifier

	Config *config.Config
}

// NewHandler creates a Handler. Hub, SSE, Breaker, JWT and Verifier may be
// nil; the corresponding endpoints degrade gracefully.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		accounts:   deps.Accounts,
		notes:      deps.Notes,
		sync:       deps.Sync,
		credential: deps.Credential,
		pinger:     deps.Pinger,
		breaker:    deps.Breaker,
		hub:        deps.Hub,
		sse:        deps.SSE,
		perf:       deps.Perf,
		jwt:        deps.JWT,
		verifier:   deps.Verifier,
		cfg:        deps.Config,
	}
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/models"
	"github.com/tomtom215/notetrace/internal/store"
)

// CreateAccountRequest adds a publisher to the tracked set.
type CreateAccountRequest struct {
	PlatformUserID string `json:"platform_user_id" validate:"required,min=1,max=64"`
	Nickname       string `json:"nickname" validate:"max=128"`
}

// DeleteAccountsRequest removes tracked accounts and their notes.
type DeleteAccountsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100"`
}

// AccountList returns all tracked accounts.
func (h *Handler) AccountList(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list accounts", err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"total":    len(accounts),
	})
}

// AccountCreate registers a new tracked account. The profile fields are
// filled in by the first sync run.
func (h *Handler) AccountCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PlatformUserID = strings.TrimSpace(req.PlatformUserID)

	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	account := &models.Account{
		PlatformUserID: req.PlatformUserID,
		Nickname:       req.Nickname,
		Status:         models.StatusIdle,
	}

	if err := h.accounts.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, store.ErrAccountExists) {
			respondError(w, http.StatusConflict, "ACCOUNT_EXISTS", "Account is already tracked", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create account", err)
		return
	}

	logging.Info().
		Str("account_id", account.ID).
		Str("platform_user_id", sanitizeLogValue(account.PlatformUserID)).
		Msg("Tracked account created")

	respondData(w, http.StatusCreated, account)
}

// AccountGet returns a single tracked account.
func (h *Handler) AccountGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Account not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load account", err)
		return
	}

	respondData(w, http.StatusOK, account)
}

// AccountDelete removes a single tracked account and its notes.
func (h *Handler) AccountDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.sync.Active() {
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", "Cannot delete accounts while a sync batch is running", nil)
		return
	}

	deleted, err := h.accounts.DeleteAccounts(r.Context(), []string{id})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete account", err)
		return
	}
	if deleted == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Account not found", nil)
		return
	}

	logging.Info().Str("account_id", sanitizeLogValue(id)).Msg("Tracked account deleted")

	respondData(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
	})
}

// AccountsDelete removes tracked accounts in batch. Accounts that are part
// of an active sync batch cannot be removed.
func (h *Handler) AccountsDelete(w http.ResponseWriter, r *http.Request) {
	var req DeleteAccountsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if h.sync.Active() {
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", "Cannot delete accounts while a sync batch is running", nil)
		return
	}

	deleted, err := h.accounts.DeleteAccounts(r.Context(), req.IDs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete accounts", err)
		return
	}

	logging.Info().Int64("deleted", deleted).Msg("Tracked accounts deleted")

	respondData(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
	})
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/models"
	"github.com/tomtom215/notetrace/internal/store"
	syncpkg "github.com/tomtom215/notetrace/internal/sync"
)

// RunSyncRequest starts a sync batch over the selected accounts.
// An empty ID list selects every tracked account.
type RunSyncRequest struct {
	IDs  []string `json:"ids" validate:"max=500"`
	Mode string   `json:"mode" validate:"omitempty,oneof=fast deep"`
}

// SyncRun starts an asynchronous sync batch. Returns 409 when a batch is
// already running; runs never queue behind each other.
func (h *Handler) SyncRun(w http.ResponseWriter, r *http.Request) {
	var req RunSyncRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	mode, err := models.ParseSyncMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	if err := h.sync.RunSync(r.Context(), req.IDs, mode); err != nil {
		switch {
		case errors.Is(err, syncpkg.ErrBatchActive):
			respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", "A sync batch is already running", nil)
		case errors.Is(err, syncpkg.ErrNoAccounts):
			respondError(w, http.StatusBadRequest, "NO_ACCOUNTS", "No matching accounts to sync", nil)
		default:
			respondError(w, http.StatusInternalServerError, "SYNC_ERROR", "Failed to start sync batch", err)
		}
		return
	}

	logging.Info().
		Int("accounts", len(req.IDs)).
		Str("mode", string(mode)).
		Msg("Sync batch accepted")

	respondData(w, http.StatusAccepted, map[string]interface{}{
		"mode":    mode,
		"started": true,
	})
}

// SyncStop requests cooperative cancellation of the running batch. All
// pending and processing accounts transition to failed with an operator
// stop message. Safe to call when no batch is running.
func (h *Handler) SyncStop(w http.ResponseWriter, r *http.Request) {
	stopped, err := h.sync.StopSync(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SYNC_ERROR", "Failed to stop sync batch", err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"stoppedCount": stopped,
	})
}

// SyncStatus returns the polling snapshot for the selected accounts, or all
// accounts when the ids parameter is absent.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	ids := getListParam(r, "ids")

	snaps, err := h.sync.Status(r.Context(), ids)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load sync status", err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"active":   h.sync.Active(),
		"accounts": snaps,
	})
}

// AccountSyncLog returns the classified issue report of an account's most
// recent run. Accounts that never completed a run yield a null log.
func (h *Handler) AccountSyncLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	syncLog, err := h.accounts.GetSyncLog(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Account not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load sync log", err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"sync_log": syncLog,
	})
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package api

import (
	"net/http"
	"strings"
)

// SetCredentialRequest replaces the shared platform credential.
type SetCredentialRequest struct {
	Cookie string `json:"cookie" validate:"required,min=16"`
}

// CredentialSet stores a new platform credential. The value is encrypted
// at rest and replaces any previous credential, clearing an invalidated
// state.
func (h *Handler) CredentialSet(w http.ResponseWriter, r *http.Request) {
	var req SetCredentialRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Cookie = strings.TrimSpace(req.Cookie)

	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if err := h.credential.Set(r.Context(), req.Cookie); err != nil {
		respondError(w, http.StatusInternalServerError, "CREDENTIAL_ERROR", "Failed to store credential", err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"configured": true,
	})
}

// CredentialStatus reports whether a credential is configured and valid.
// The credential value itself is never returned.
func (h *Handler) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.credential.Status(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "CREDENTIAL_ERROR", "Failed to load credential status", err)
		return
	}

	respondData(w, http.StatusOK, status)
}

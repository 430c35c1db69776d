// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package api

import (
	"net/http"

	"github.com/tomtom215/notetrace/internal/auth"
	"github.com/tomtom215/notetrace/internal/logging"
)

// LoginRequest authenticates the operator account.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=1,max=128"`
}

// Login verifies operator credentials and issues a JWT session. The token
// is returned in the body and set as an HttpOnly cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.jwt == nil || h.verifier == nil {
		respondError(w, http.StatusServiceUnavailable, "AUTH_DISABLED", "Authentication is not enabled", nil)
		return
	}

	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	if !h.verifier.Verify(req.Username, req.Password) {
		logging.Warn().
			Str("username", sanitizeLogValue(req.Username)).
			Str("remote_addr", r.RemoteAddr).
			Msg("Login failed")
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid username or password", nil)
		return
	}

	token, err := h.jwt.GenerateToken(req.Username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "AUTHENTICATION_ERROR", "Failed to issue session token", err)
		return
	}

	secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	http.SetCookie(w, auth.SessionCookie(h.jwt, token, secure))

	logging.Info().Str("username", sanitizeLogValue(req.Username)).Msg("Login succeeded")

	respondData(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_in": int64(h.jwt.SessionTimeout().Seconds()),
	})
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package api

import (
	"net/http"
)

// SystemPerformance returns aggregated API latency statistics from the
// in-process performance monitor.
func (h *Handler) SystemPerformance(w http.ResponseWriter, r *http.Request) {
	if h.perf == nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_AVAILABLE", "Performance monitoring is not enabled", nil)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"endpoints": h.perf.GetStats(),
	})
}

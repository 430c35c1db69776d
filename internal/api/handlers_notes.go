// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/models"
	"github.com/tomtom215/notetrace/internal/store"
)

// exportBatchSize bounds memory while streaming the filtered set.
const exportBatchSize = 500

// noteFilterFromQuery builds a normalized NoteFilter from query parameters.
func (h *Handler) noteFilterFromQuery(r *http.Request) store.NoteFilter {
	q := r.URL.Query()

	f := store.NoteFilter{
		AccountIDs: getListParam(r, "account_ids"),
		Keywords:   store.ParseKeywords(q.Get("keywords")),
		Mode:       store.KeywordMode(q.Get("keyword_mode")),
		Type:       models.NoteType(q.Get("type")),
		After:      q.Get("after"),
		Before:     q.Get("before"),
		SortBy:     q.Get("sort_by"),
		SortDesc:   getBoolParam(r, "sort_desc", true),
		Page:       getIntParam(r, "page", 1),
		PageSize:   getIntParam(r, "page_size", 0),
	}
	f.Normalize(h.cfg.API.DefaultPageSize, h.cfg.API.MaxPageSize)
	return f
}

// NotesList returns one page of filtered notes plus the unpaginated total.
func (h *Handler) NotesList(w http.ResponseWriter, r *http.Request) {
	f := h.noteFilterFromQuery(r)

	notes, total, err := h.notes.ListNotes(r.Context(), f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list notes", err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"notes":     notes,
		"total":     total,
		"page":      f.Page,
		"page_size": f.PageSize,
	})
}

// NoteGet returns a single note by its platform identifier.
func (h *Handler) NoteGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	note, err := h.notes.GetNote(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNoteNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Note not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load note", err)
		return
	}

	respondData(w, http.StatusOK, note)
}

var csvHeader = []string{
	"id", "account_id", "title", "desc", "type", "publish_time",
	"like_count", "collect_count", "comment_count", "share_count",
	"cover_url", "local_media_path", "is_complete",
}

// NotesExportCSV streams the whole filtered note set as a CSV download.
// Pagination parameters are ignored; the export walks every match.
func (h *Handler) NotesExportCSV(w http.ResponseWriter, r *http.Request) {
	f := h.noteFilterFromQuery(r)
	f.Page = 1
	f.PageSize = exportBatchSize

	filename := fmt.Sprintf("notes-%s.csv", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		logging.Error().Err(err).Msg("Failed to write CSV header")
		return
	}

	var exported int
	err := h.notes.ForEachFilteredNote(r.Context(), f, exportBatchSize, func(n models.Note) error {
		record := []string{
			n.ID,
			n.AccountID,
			sanitizeCSVCell(n.Title),
			sanitizeCSVCell(n.Desc),
			string(n.Type),
			formatPublishTime(n.PublishTime),
			strconv.Itoa(n.LikeCount),
			strconv.Itoa(n.CollectCount),
			strconv.Itoa(n.CommentCount),
			strconv.Itoa(n.ShareCount),
			n.CoverURL,
			n.LocalMediaPath,
			strconv.FormatBool(n.IsComplete),
		}
		exported++
		return cw.Write(record)
	})
	if err != nil {
		// Headers are already sent; all we can do is log and truncate.
		logging.Error().Err(err).Int("exported", exported).Msg("CSV export aborted")
		return
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.Error().Err(err).Msg("Failed to flush CSV export")
		return
	}

	logging.Info().
		Int("exported", exported).
		Str("filename", filename).
		Msg("Notes exported to CSV")
}

func formatPublishTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// sanitizeCSVCell guards against spreadsheet formula injection for cells
// that start with control prefixes.
func sanitizeCSVCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	if strings.ContainsAny(s[:1], "\t\r") {
		return "'" + s
	}
	return s
}

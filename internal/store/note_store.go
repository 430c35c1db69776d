// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tomtom215/notetrace/internal/models"
)

// ErrNoteNotFound is returned when a note id does not exist.
var ErrNoteNotFound = errors.New("note not found")

// KeywordMode selects how multiple keywords combine in a note filter.
type KeywordMode string

const (
	KeywordAnd KeywordMode = "and"
	KeywordOr  KeywordMode = "or"
)

// NoteFilter describes a filtered, paginated note listing.
type NoteFilter struct {
	AccountIDs []string
	Keywords   []string
	Mode       KeywordMode
	Type       models.NoteType
	After      string // inclusive publish date lower bound, YYYY-MM-DD
	Before     string // inclusive publish date upper bound, YYYY-MM-DD
	SortBy     string
	SortDesc   bool
	Page       int
	PageSize   int
}

// sortColumns whitelists user-supplied sort fields.
var sortColumns = map[string]string{
	"publish_time":  "publish_time",
	"like_count":    "like_count",
	"collect_count": "collect_count",
	"comment_count": "comment_count",
	"created_at":    "created_at",
}

// Normalize applies defaults and clamps pagination.
func (f *NoteFilter) Normalize(defaultPageSize, maxPageSize int) {
	if f.Mode != KeywordAnd && f.Mode != KeywordOr {
		f.Mode = KeywordAnd
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	if _, ok := sortColumns[f.SortBy]; !ok {
		f.SortBy = "publish_time"
		f.SortDesc = true
	}
}

// ParseKeywords splits a raw keyword string into trimmed terms.
func ParseKeywords(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keywords = append(keywords, p)
		}
	}
	return keywords
}

// orderClause renders the filter's ORDER BY expression.
func (f *NoteFilter) orderClause() string {
	col := sortColumns[f.SortBy]
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	// Secondary key keeps pagination stable for equal sort values.
	return fmt.Sprintf("%s %s NULLS LAST, id ASC", col, dir)
}

// applyNoteFilter adds the filter's WHERE conditions to a query.
func applyNoteFilter(q *gorm.DB, f NoteFilter) *gorm.DB {
	if len(f.AccountIDs) > 0 {
		q = q.Where("account_id IN ?", f.AccountIDs)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.After != "" {
		q = q.Where("publish_time >= ?", f.After)
	}
	if f.Before != "" {
		q = q.Where("publish_time < (?::date + interval '1 day')", f.Before)
	}

	if len(f.Keywords) > 0 {
		if f.Mode == KeywordOr {
			or := q.Session(&gorm.Session{NewDB: true})
			for _, kw := range f.Keywords {
				pattern := "%" + kw + "%"
				or = or.Or("title ILIKE ? OR \"desc\" ILIKE ?", pattern, pattern)
			}
			q = q.Where(or)
		} else {
			for _, kw := range f.Keywords {
				pattern := "%" + kw + "%"
				q = q.Where("title ILIKE ? OR \"desc\" ILIKE ?", pattern, pattern)
			}
		}
	}

	return q
}

// ListNotes returns one page of filtered notes plus the unpaginated total.
func (s *Store) ListNotes(ctx context.Context, f NoteFilter) ([]models.Note, int64, error) {
	base := applyNoteFilter(s.db.WithContext(ctx).Model(&models.Note{}), f)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notes: %w", err)
	}

	var notes []models.Note
	err := base.
		Order(f.orderClause()).
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&notes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notes: %w", err)
	}

	return notes, total, nil
}

// ForEachFilteredNote streams every note matching the filter in stable order,
// in batches. Used by the CSV export to bound memory.
func (s *Store) ForEachFilteredNote(ctx context.Context, f NoteFilter, batchSize int, fn func(models.Note) error) error {
	q := applyNoteFilter(s.db.WithContext(ctx).Model(&models.Note{}), f).Order(f.orderClause())

	var batch []models.Note
	res := q.FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		for _, n := range batch {
			if err := fn(n); err != nil {
				return err
			}
		}
		return nil
	})
	if res.Error != nil {
		return fmt.Errorf("failed to stream notes: %w", res.Error)
	}
	return nil
}

// GetNote loads one note by id.
func (s *Store) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var n models.Note
	err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load note %s: %w", id, err)
	}
	return &n, nil
}

// UpsertNotes inserts or updates a batch of notes keyed by platform note id.
// List-level upserts refresh counters without clobbering detail fields that a
// previous deep sync already backfilled.
func (s *Store) UpsertNotes(ctx context.Context, notes []models.Note) error {
	if len(notes) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "like_count", "collect_count", "comment_count",
			"share_count", "cover_url", "updated_at",
		}),
	}).Create(&notes).Error
	if err != nil {
		return fmt.Errorf("failed to upsert notes: %w", err)
	}
	return nil
}

// SaveNoteDetail persists the detail fields of a fetched note. Completeness
// is the caller's call: a partial detail is stored with IsComplete false so
// a later deep run retries it.
func (s *Store) SaveNoteDetail(ctx context.Context, n *models.Note) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "desc", "type", "publish_time", "like_count",
			"collect_count", "comment_count", "share_count", "cover_url",
			"media_urls", "is_complete", "updated_at",
		}),
	}).Create(n).Error
	if err != nil {
		return fmt.Errorf("failed to save note detail %s: %w", n.ID, err)
	}
	return nil
}

// CompleteNoteIDs returns the set of the account's notes that already have
// full detail. Deep mode consults this to decide what to skip.
func (s *Store) CompleteNoteIDs(ctx context.Context, accountID string) (map[string]bool, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Note{}).
		Where("account_id = ? AND is_complete = ?", accountID, true).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load complete note ids: %w", err)
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// SetNoteMediaPath records where the media queue stored a note's assets.
func (s *Store) SetNoteMediaPath(ctx context.Context, noteID, path string) error {
	err := s.db.WithContext(ctx).Model(&models.Note{}).
		Where("id = ?", noteID).
		Update("local_media_path", path).Error
	if err != nil {
		return fmt.Errorf("failed to set media path for %s: %w", noteID, err)
	}
	return nil
}

// CountNotes returns the number of stored notes for an account.
func (s *Store) CountNotes(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Note{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notes for %s: %w", accountID, err)
	}
	return count, nil
}

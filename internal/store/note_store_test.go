// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package store

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tomtom215/notetrace/internal/models"
)

// dryRunStore opens a statement-building GORM session with no live
// connection. Good enough for exercising store methods that neither read
// results nor open transactions.
func dryRunStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 user=notetrace dbname=notetrace"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open dry-run session: %v", err)
	}
	return NewWithDB(db)
}

func TestNoteFilterNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   NoteFilter
		want NoteFilter
	}{
		{
			name: "empty filter gets defaults",
			in:   NoteFilter{},
			want: NoteFilter{Mode: KeywordAnd, SortBy: "publish_time", SortDesc: true, Page: 1, PageSize: 20},
		},
		{
			name: "page size clamped to max",
			in:   NoteFilter{PageSize: 5000, Page: 3, SortBy: "like_count"},
			want: NoteFilter{Mode: KeywordAnd, SortBy: "like_count", Page: 3, PageSize: 100},
		},
		{
			name: "unknown sort column replaced",
			in:   NoteFilter{SortBy: "id; DROP TABLE notes"},
			want: NoteFilter{Mode: KeywordAnd, SortBy: "publish_time", SortDesc: true, Page: 1, PageSize: 20},
		},
		{
			name: "or mode preserved",
			in:   NoteFilter{Mode: KeywordOr, SortBy: "created_at"},
			want: NoteFilter{Mode: KeywordOr, SortBy: "created_at", Page: 1, PageSize: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.in
			f.Normalize(20, 100)
			if !reflect.DeepEqual(f, tt.want) {
				t.Errorf("Normalize() = %+v, want %+v", f, tt.want)
			}
		})
	}
}

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"coffee", []string{"coffee"}},
		{"coffee, travel", []string{"coffee", "travel"}},
		{"coffee travel  tokyo", []string{"coffee", "travel", "tokyo"}},
		{",,coffee,,", []string{"coffee"}},
	}

	for _, tt := range tests {
		got := ParseKeywords(tt.raw)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseKeywords(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSaveNoteDetailKeepsCallerCompleteness(t *testing.T) {
	s := dryRunStore(t)
	ctx := context.Background()

	partial := models.Note{ID: "n1", AccountID: "a1", Title: "t"}
	if err := s.SaveNoteDetail(ctx, &partial); err != nil {
		t.Fatalf("SaveNoteDetail failed: %v", err)
	}
	if partial.IsComplete {
		t.Error("a partial detail must stay incomplete so a later deep run retries it")
	}

	full := models.Note{ID: "n2", AccountID: "a1", Title: "t", IsComplete: true}
	if err := s.SaveNoteDetail(ctx, &full); err != nil {
		t.Fatalf("SaveNoteDetail failed: %v", err)
	}
	if !full.IsComplete {
		t.Error("a fully fetched detail must be stored complete")
	}
}

func TestOrderClause(t *testing.T) {
	f := NoteFilter{}
	f.Normalize(20, 100)

	clause := f.orderClause()
	if !strings.HasPrefix(clause, "publish_time DESC") {
		t.Errorf("expected default descending publish_time order, got %q", clause)
	}
	if !strings.Contains(clause, "id ASC") {
		t.Errorf("expected stable secondary sort key, got %q", clause)
	}

	f = NoteFilter{SortBy: "like_count", SortDesc: false}
	f.Normalize(20, 100)
	if got := f.orderClause(); !strings.HasPrefix(got, "like_count ASC") {
		t.Errorf("expected ascending like_count order, got %q", got)
	}
}

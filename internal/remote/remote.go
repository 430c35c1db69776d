// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

// Package remote implements the client for the upstream content platform's
// web API: profile lookup, paginated note listing, per-note detail fetch
// and media retrieval. All failures are surfaced as typed *Error values so
// the sync orchestrator can classify outcomes without string matching.
package remote

import (
	"context"
	"time"
)

// Profile is a publisher's public profile.
type Profile struct {
	UserID    string
	Nickname  string
	AvatarURL string
	NoteCount int
}

// ListItem is one note as it appears on a list page. List pages carry
// counters and the cover image but not the description, publish time or
// media URLs; those require a detail fetch.
type ListItem struct {
	ID           string
	Title        string
	Type         string
	CoverURL     string
	LikeCount    int
	CollectCount int
	CommentCount int
	ShareCount   int
}

// Page is one page of a publisher's note catalog.
type Page struct {
	Items      []ListItem
	NextCursor string
	HasMore    bool

	// TokenRefreshed reports that the client silently refreshed its search
	// token while serving this request.
	TokenRefreshed bool
}

// ItemDetail is a fully fetched note.
type ItemDetail struct {
	ListItem
	Desc        string
	PublishTime *time.Time
	MediaURLs   []string

	TokenRefreshed bool
}

// Client is the interface the sync orchestrator consumes.
type Client interface {
	// FetchProfile looks up a publisher's public profile.
	FetchProfile(ctx context.Context, platformUserID string) (*Profile, error)

	// FetchPage fetches one page of the publisher's note catalog. An empty
	// cursor requests the first page.
	FetchPage(ctx context.Context, platformUserID, cursor string) (*Page, error)

	// FetchDetail fetches the full detail of one note.
	FetchDetail(ctx context.Context, itemID string) (*ItemDetail, error)

	// FetchMedia downloads one media asset.
	FetchMedia(ctx context.Context, url string) ([]byte, error)
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// NoteType distinguishes image posts from video posts.
type NoteType string

const (
	NoteTypeNormal NoteType = "normal"
	NoteTypeVideo  NoteType = "video"
)

// Note represents a single remote content unit (post) belonging to an Account.
//
// List pages populate the counter fields only; PublishTime, Desc and the
// media URLs require a per-item detail fetch. IsComplete reports whether the
// detail fields have been backfilled, which is what deep mode uses to decide
// whether an item can be skipped.
type Note struct {
	// ID is the platform's note identifier, not locally generated.
	ID        string `gorm:"primaryKey" json:"id"`
	AccountID string `gorm:"index;not null" json:"account_id"`

	Title string   `json:"title"`
	Desc  string   `json:"desc,omitempty"`
	Type  NoteType `gorm:"default:'normal'" json:"type"`

	PublishTime *time.Time `gorm:"index" json:"publish_time,omitempty"`

	LikeCount    int `gorm:"default:0" json:"like_count"`
	CollectCount int `gorm:"default:0" json:"collect_count"`
	CommentCount int `gorm:"default:0" json:"comment_count"`
	ShareCount   int `gorm:"default:0" json:"share_count"`

	CoverURL     string `json:"cover_url,omitempty"`
	MediaURLsRaw []byte `gorm:"column:media_urls;type:jsonb" json:"-"`

	// LocalMediaPath is set once the media queue has downloaded the
	// note's assets.
	LocalMediaPath string `json:"local_media_path,omitempty"`

	IsComplete bool `gorm:"default:false;index" json:"is_complete"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Note) TableName() string {
	return "notes"
}

// MediaURLs deserializes the note's media URL list.
func (n *Note) MediaURLs() []string {
	if len(n.MediaURLsRaw) == 0 {
		return nil
	}
	var urls []string
	if err := json.Unmarshal(n.MediaURLsRaw, &urls); err != nil {
		return nil
	}
	return urls
}

// SetMediaURLs serializes and attaches the note's media URL list.
func (n *Note) SetMediaURLs(urls []string) error {
	if len(urls) == 0 {
		n.MediaURLsRaw = nil
		return nil
	}
	raw, err := json.Marshal(urls)
	if err != nil {
		return err
	}
	n.MediaURLsRaw = raw
	return nil
}

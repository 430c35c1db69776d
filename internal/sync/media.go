// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
media.go - local media archival

Downloads a note's images and video streams to the media directory under
<dir>/<accountID>/<noteID>/. Archive fans URLs out over a bounded worker
pool but returns only once every asset is resolved, so failures attribute
to the run that requested them. A media failure never fails the note; the
note's detail is already persisted by the time archival starts.
*/

package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/notetrace/internal/config"
	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/metrics"
	"github.com/tomtom215/notetrace/internal/remote"
)

// MediaStore is the subset of store operations archival needs.
type MediaStore interface {
	SetNoteMediaPath(ctx context.Context, noteID, path string) error
}

// MediaManager implements MediaArchiver against the local filesystem.
type MediaManager struct {
	client  remote.Client
	store   MediaStore
	dir     string
	workers int
	queue   int
	timeout time.Duration
}

// NewMediaManager creates an archiver writing under cfg.Dir. Workers bounds
// per-note download concurrency, QueueSize bounds in-flight dispatch, and
// Timeout caps each individual download.
func NewMediaManager(client remote.Client, store MediaStore, cfg config.MediaConfig) *MediaManager {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queue := cfg.QueueSize
	if queue < 0 {
		queue = 0
	}
	return &MediaManager{
		client:  client,
		store:   store,
		dir:     cfg.Dir,
		workers: workers,
		queue:   queue,
		timeout: cfg.Timeout,
	}
}

var _ MediaArchiver = (*MediaManager)(nil)

// Archive downloads every URL for one note. Assets that already exist on
// disk are kept; the note's media path is recorded once at least one asset
// landed.
func (m *MediaManager) Archive(ctx context.Context, accountID, noteID string, urls []string) []MediaFailure {
	noteDir := filepath.Join(m.dir, accountID, noteID)
	if err := os.MkdirAll(noteDir, 0o750); err != nil {
		return []MediaFailure{{Message: fmt.Sprintf("failed to create media directory: %v", err)}}
	}

	type result struct {
		failure *MediaFailure
		stored  bool
	}

	jobs := make(chan string, m.queue)
	results := make(chan result, len(urls))

	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				if err := m.download(ctx, noteDir, url); err != nil {
					metrics.MediaDownloadsTotal.WithLabelValues("failure").Inc()
					results <- result{failure: &MediaFailure{URL: url, Message: err.Error()}}
					continue
				}
				metrics.MediaDownloadsTotal.WithLabelValues("success").Inc()
				results <- result{stored: true}
			}
		}()
	}

	for _, url := range urls {
		jobs <- url
	}
	close(jobs)
	wg.Wait()
	close(results)

	var failures []MediaFailure
	stored := false
	for res := range results {
		if res.failure != nil {
			failures = append(failures, *res.failure)
		}
		if res.stored {
			stored = true
		}
	}

	if stored {
		if err := m.store.SetNoteMediaPath(ctx, noteID, noteDir); err != nil {
			logging.Warn().Err(err).Str("note_id", noteID).Msg("Failed to record media path")
		}
	}
	return failures
}

// download fetches one asset unless it is already on disk. A stalled CDN
// response is cut off at the configured timeout so one asset cannot wedge
// the whole run.
func (m *MediaManager) download(ctx context.Context, noteDir, url string) error {
	path := filepath.Join(noteDir, mediaFileName(url))
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	data, err := m.client.FetchMedia(ctx, url)
	if err != nil {
		return err
	}

	// Write-then-rename so a crashed download never leaves a partial file
	// that later runs mistake for a complete asset.
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("failed to write media file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize media file: %w", err)
	}
	return nil
}

// mediaFileName derives a stable on-disk name from the asset URL. The URL's
// query carries signing tokens that rotate, so only the path contributes.
func mediaFileName(url string) string {
	trimmed := url
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}

	ext := filepath.Ext(trimmed)
	if ext == "" || len(ext) > 8 {
		ext = ".bin"
	}

	sum := sha256.Sum256([]byte(trimmed))
	return hex.EncodeToString(sum[:8]) + ext
}

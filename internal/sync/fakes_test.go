// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package sync

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/notetrace/internal/broadcast"
	"github.com/tomtom215/notetrace/internal/config"
	"github.com/tomtom215/notetrace/internal/models"
	"github.com/tomtom215/notetrace/internal/remote"
)

// fakeStore is an in-memory ManagerStore.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	notes    map[string]*models.Note
	complete map[string]map[string]bool // accountID -> noteID -> complete
	syncLogs map[string][]byte

	upsertCalls int
	upsertErr   error
}

func newFakeStore(accounts ...*models.Account) *fakeStore {
	s := &fakeStore{
		accounts: make(map[string]*models.Account),
		notes:    make(map[string]*models.Note),
		complete: make(map[string]map[string]bool),
		syncLogs: make(map[string][]byte),
	}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *fakeStore) get(id string) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[id]
}

func (s *fakeStore) BeginRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	a.Status = models.StatusProcessing
	a.Progress = 0
	a.LoadedItems = 0
	a.TotalItems = 0
	a.ErrorMessage = ""
	return nil
}

func (s *fakeStore) UpdateProfile(ctx context.Context, id, nickname, avatarURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id].Nickname = nickname
	s.accounts[id].AvatarURL = avatarURL
	return nil
}

func (s *fakeStore) UpdateRunProgress(ctx context.Context, id string, progress, loaded, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	a.Progress = progress
	a.LoadedItems = loaded
	a.TotalItems = total
	return nil
}

func (s *fakeStore) CompleteRun(ctx context.Context, id string, syncLogRaw []byte, loaded, total, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	a.Status = models.StatusCompleted
	a.Progress = progress
	a.LoadedItems = loaded
	a.TotalItems = total
	s.syncLogs[id] = syncLogRaw
	return nil
}

func (s *fakeStore) FailRun(ctx context.Context, id, errorMessage string, syncLogRaw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	a.Status = models.StatusFailed
	a.ErrorMessage = errorMessage
	if syncLogRaw != nil {
		s.syncLogs[id] = syncLogRaw
	}
	return nil
}

func (s *fakeStore) UpsertNotes(ctx context.Context, notes []models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for i := range notes {
		n := notes[i]
		s.notes[n.ID] = &n
	}
	return nil
}

func (s *fakeStore) SaveNoteDetail(ctx context.Context, n *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *n
	s.notes[n.ID] = &copied
	return nil
}

func (s *fakeStore) CompleteNoteIDs(ctx context.Context, accountID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool)
	for id, done := range s.complete[accountID] {
		out[id] = done
	}
	return out, nil
}

func (s *fakeStore) ListAccounts(ctx context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Account
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (s *fakeStore) LoadAccounts(ctx context.Context, ids []string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Account
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkPending(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.accounts[id].Status = models.StatusPending
	}
	return nil
}

func (s *fakeStore) FailActiveAccounts(ctx context.Context, ids []string, errorMessage string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		a, ok := s.accounts[id]
		if !ok {
			continue
		}
		if a.Status == models.StatusPending || a.Status == models.StatusProcessing {
			a.Status = models.StatusFailed
			a.ErrorMessage = errorMessage
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Snapshots(ctx context.Context, ids []string) ([]models.StatusSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StatusSnapshot
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out = append(out, a.Snapshot())
		}
	}
	return out, nil
}

func (s *fakeStore) SweepStaleRuns(ctx context.Context, timeout time.Duration) (int64, error) {
	return 0, nil
}

// fakeClient scripts remote responses per account and item.
type fakeClient struct {
	mu       sync.Mutex
	profiles map[string]*remote.Profile
	pages    map[string][]*remote.Page
	pageIdx  map[string]int
	details  map[string]func(attempt int) (*remote.ItemDetail, error)
	attempts map[string]int
	calls    int

	// blockDetail, when set, makes FetchDetail wait for ctx cancellation.
	blockDetail bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		profiles: make(map[string]*remote.Profile),
		pages:    make(map[string][]*remote.Page),
		pageIdx:  make(map[string]int),
		details:  make(map[string]func(int) (*remote.ItemDetail, error)),
		attempts: make(map[string]int),
	}
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *fakeClient) FetchProfile(ctx context.Context, platformUserID string) (*remote.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if p, ok := c.profiles[platformUserID]; ok {
		return p, nil
	}
	return nil, &remote.Error{Kind: remote.KindUnavailable, Op: "fetch_profile", Message: "unknown user"}
}

func (c *fakeClient) FetchPage(ctx context.Context, platformUserID, cursor string) (*remote.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	script := c.pages[platformUserID]
	idx := c.pageIdx[platformUserID]
	if idx >= len(script) {
		return &remote.Page{}, nil
	}
	c.pageIdx[platformUserID] = idx + 1
	return script[idx], nil
}

func (c *fakeClient) FetchDetail(ctx context.Context, itemID string) (*remote.ItemDetail, error) {
	c.mu.Lock()
	if c.blockDetail {
		c.calls++
		c.mu.Unlock()
		<-ctx.Done()
		return nil, &remote.Error{Kind: remote.KindTransient, Op: "fetch_detail", Message: "canceled"}
	}
	c.calls++
	c.attempts[itemID]++
	attempt := c.attempts[itemID]
	fn, ok := c.details[itemID]
	c.mu.Unlock()

	if !ok {
		return nil, &remote.Error{Kind: remote.KindUnavailable, Op: "fetch_detail", Message: "no script"}
	}
	return fn(attempt)
}

func (c *fakeClient) FetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	return []byte("media"), nil
}

// captureBroadcaster records published events in order.
type captureBroadcaster struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (b *captureBroadcaster) Publish(e broadcast.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *captureBroadcaster) byType(eventType string) []broadcast.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []broadcast.Event
	for _, e := range b.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Platform.DetailRetries = 3
	cfg.Sync.MinDelay = 0
	cfg.Sync.MaxDelay = 0
	cfg.Sync.InitialDelay = 0
	cfg.Sync.BatchCommitSize = 5
	cfg.Sync.HeartbeatTimeout = time.Minute
	cfg.Sync.CleanupInterval = time.Minute
	cfg.Sync.Interval = time.Hour
	return cfg
}

func testAccount(id, userID string) *models.Account {
	return &models.Account{
		ID:             id,
		PlatformUserID: userID,
		Status:         models.StatusIdle,
	}
}

func fullDetail(itemID string) *remote.ItemDetail {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &remote.ItemDetail{
		ListItem: remote.ListItem{
			ID:    itemID,
			Title: "Note " + itemID,
			Type:  "normal",
		},
		Desc:        "body",
		PublishTime: &t,
		MediaURLs:   []string{"https://cdn.example/" + itemID + ".jpg"},
	}
}

func listPage(ids []string, hasMore bool, cursor string) *remote.Page {
	p := &remote.Page{HasMore: hasMore, NextCursor: cursor}
	for _, id := range ids {
		p.Items = append(p.Items, remote.ListItem{ID: id, Title: "Note " + id, Type: "normal"})
	}
	return p
}

// waitForBatch blocks until the manager's background batch goroutine exits.
func waitForBatch(m *Manager) {
	m.wg.Wait()
}

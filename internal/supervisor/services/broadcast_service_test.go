// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/thejerf/suture/v4"
)

// mockRunner is a test double for ContextRunner.
type mockRunner struct {
	serveCount atomic.Int32
	serveErr   error
}

func (m *mockRunner) Serve(ctx context.Context) error {
	m.serveCount.Add(1)
	if m.serveErr != nil {
		return m.serveErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestBroadcastHubService_Interface(t *testing.T) {
	var _ suture.Service = (*BroadcastHubService)(nil)
	var _ suture.Service = (*SyncManagerService)(nil)
}

func TestBroadcastHubService_Delegates(t *testing.T) {
	runner := &mockRunner{}
	svc := NewBroadcastHubService(runner)

	if svc.String() != "broadcast-hub" {
		t.Errorf("expected name 'broadcast-hub', got %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if got := runner.serveCount.Load(); got != 1 {
		t.Errorf("expected 1 Serve call, got %d", got)
	}
}

func TestSyncManagerService_Delegates(t *testing.T) {
	runner := &mockRunner{serveErr: errors.New("manager crashed")}
	svc := NewSyncManagerService(runner)

	if svc.String() != "sync-manager" {
		t.Errorf("expected name 'sync-manager', got %q", svc.String())
	}

	if err := svc.Serve(context.Background()); err == nil {
		t.Error("expected delegated error from manager")
	}
	if got := runner.serveCount.Load(); got != 1 {
		t.Errorf("expected 1 Serve call, got %d", got)
	}
}

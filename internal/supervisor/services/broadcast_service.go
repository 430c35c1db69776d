// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package services

import (
	"context"
)

// ContextRunner is satisfied by components whose run loop already follows
// the suture.Service pattern: block until the context ends, then return.
//
// Satisfied by *broadcast.Hub (Serve processes client registration and
// fan-out until canceled) and by *sync.Manager (Serve drives the auto-sync
// trigger and the stale-run sweeper).
type ContextRunner interface {
	Serve(ctx context.Context) error
}

// BroadcastHubService wraps the WebSocket broadcast hub as a supervised
// service. The hub's Serve method already implements the suture.Service
// pattern, so this wrapper simply delegates to it and provides a stable
// name for supervision logs.
type BroadcastHubService struct {
	hub  ContextRunner
	name string
}

// NewBroadcastHubService creates a new broadcast hub service wrapper.
func NewBroadcastHubService(hub ContextRunner) *BroadcastHubService {
	return &BroadcastHubService{
		hub:  hub,
		name: "broadcast-hub",
	}
}

// Serve implements suture.Service by delegating to the hub's run loop.
func (s *BroadcastHubService) Serve(ctx context.Context) error {
	return s.hub.Serve(ctx)
}

// String implements fmt.Stringer for logging.
func (s *BroadcastHubService) String() string {
	return s.name
}

// SyncManagerService wraps the sync manager as a supervised service.
// The manager's Serve method runs the auto-sync ticker and the stale-run
// sweeper until the context is canceled.
type SyncManagerService struct {
	manager ContextRunner
	name    string
}

// NewSyncManagerService creates a new sync manager service wrapper.
func NewSyncManagerService(manager ContextRunner) *SyncManagerService {
	return &SyncManagerService{
		manager: manager,
		name:    "sync-manager",
	}
}

// Serve implements suture.Service by delegating to the manager's run loop.
func (s *SyncManagerService) Serve(ctx context.Context) error {
	return s.manager.Serve(ctx)
}

// String implements fmt.Stringer for logging.
func (s *SyncManagerService) String() string {
	return s.name
}

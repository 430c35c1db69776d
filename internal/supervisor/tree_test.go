// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// blockingService runs until its context is canceled and counts starts.
type blockingService struct {
	starts  atomic.Int32
	started chan struct{}
}

func newBlockingService() *blockingService {
	return &blockingService{started: make(chan struct{}, 8)}
}

func (s *blockingService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingService) String() string { return "blocking-service" }

func TestSupervisorTreeConstruction(t *testing.T) {
	t.Run("creates hierarchical supervisor tree", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), TreeConfig{
			FailureThreshold: 5,
			FailureBackoff:   time.Second,
			ShutdownTimeout:  10 * time.Second,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		if tree.Root() == nil {
			t.Error("root supervisor should not be nil")
		}
	})

	t.Run("applies default values for zero config", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		if tree.config.FailureThreshold != 5.0 {
			t.Errorf("expected default FailureThreshold 5.0, got %f", tree.config.FailureThreshold)
		}
		if tree.config.FailureDecay != 30.0 {
			t.Errorf("expected default FailureDecay 30.0, got %f", tree.config.FailureDecay)
		}
		if tree.config.FailureBackoff != 15*time.Second {
			t.Errorf("expected default FailureBackoff 15s, got %v", tree.config.FailureBackoff)
		}
		if tree.config.ShutdownTimeout != 10*time.Second {
			t.Errorf("expected default ShutdownTimeout 10s, got %v", tree.config.ShutdownTimeout)
		}
	})
}

func TestSupervisorTreeLifecycle(t *testing.T) {
	t.Run("tree starts and stops gracefully", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), DefaultTreeConfig())
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		errCh := tree.ServeBackground(ctx)

		// Give the tree a moment to spin up its layers.
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("unexpected error on shutdown: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("tree did not stop within timeout")
		}
	})

	t.Run("services in each layer are started", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), DefaultTreeConfig())
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		syncSvc := newBlockingService()
		msgSvc := newBlockingService()
		apiSvc := newBlockingService()
		tree.AddSyncService(syncSvc)
		tree.AddMessagingService(msgSvc)
		tree.AddAPIService(apiSvc)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := tree.ServeBackground(ctx)

		for _, svc := range []*blockingService{syncSvc, msgSvc, apiSvc} {
			select {
			case <-svc.started:
			case <-time.After(5 * time.Second):
				t.Fatalf("service %s did not start", svc)
			}
		}

		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			t.Fatal("tree did not stop within timeout")
		}
	})

	t.Run("crashed service is restarted", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), TreeConfig{
			FailureThreshold: 10,
			FailureBackoff:   10 * time.Millisecond,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		svc := &crashOnceService{started: make(chan struct{}, 4)}
		tree.AddMessagingService(svc)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := tree.ServeBackground(ctx)

		// First start crashes, second start blocks.
		for i := 0; i < 2; i++ {
			select {
			case <-svc.started:
			case <-time.After(5 * time.Second):
				t.Fatalf("service was not started %d times", i+1)
			}
		}
		if got := svc.starts.Load(); got < 2 {
			t.Errorf("expected at least 2 starts, got %d", got)
		}

		cancel()
		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
			t.Fatal("tree did not stop within timeout")
		}
	})
}

// crashOnceService fails its first Serve call and blocks thereafter.
type crashOnceService struct {
	starts  atomic.Int32
	started chan struct{}
}

func (s *crashOnceService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	select {
	case s.started <- struct{}{}:
	default:
	}
	if n == 1 {
		return errors.New("simulated crash")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *crashOnceService) String() string { return "crash-once-service" }

func TestRemoveMessagingServiceAndWait(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), DefaultTreeConfig())
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}

	svc := newBlockingService()
	token := tree.AddMessagingService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	select {
	case <-svc.started:
	case <-time.After(5 * time.Second):
		t.Fatal("service did not start")
	}

	if err := tree.RemoveMessagingServiceAndWait(token, 5*time.Second); err != nil {
		t.Errorf("RemoveMessagingServiceAndWait failed: %v", err)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop within timeout")
	}
}

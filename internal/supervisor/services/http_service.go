// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/notetrace/internal/logging"
)

// defaultShutdownGrace bounds graceful shutdown when the caller passes no
// timeout. Long enough for an SSE stream to notice the disconnect.
const defaultShutdownGrace = 10 * time.Second

// HTTPServer is the lifecycle slice of *http.Server the wrapper needs.
// Narrowed to an interface so tests can stand in a scripted server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService adapts http.Server's blocking ListenAndServe to the
// context-driven suture.Service contract: the listener runs in its own
// goroutine while Serve watches for cancellation, then drains connections
// through Shutdown within the configured grace period.
//
// A bind failure surfaces as the Serve error, so the supervisor's restart
// backoff applies to a port conflict the same way it applies to a crash.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService wraps server as a supervised service. A non-positive
// shutdownTimeout falls back to the default grace period.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownGrace
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve implements suture.Service. Returns nil only when the listener exits
// on its own without error; a canceled context propagates ctx.Err() so the
// supervisor treats the stop as intentional.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		err := h.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		logging.Info().
			Str("service", h.name).
			Dur("grace", h.shutdownTimeout).
			Msg("Draining HTTP connections")

		// The service context is already canceled; shutdown gets its own
		// deadline so in-flight requests can still finish.
		drainCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}

		// ListenAndServe returns ErrServerClosed once Shutdown completes.
		<-serveErr
		logging.Info().Str("service", h.name).Msg("HTTP server stopped")
		return ctx.Err()
	}
}

// String implements fmt.Stringer; suture uses it to name the service in
// supervision logs.
func (h *HTTPServerService) String() string {
	return h.name
}

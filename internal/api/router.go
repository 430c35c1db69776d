// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/notetrace/internal/auth"
	"github.com/tomtom215/notetrace/internal/middleware"
)

// Router assembles the Chi route tree from the handler set and the
// middleware factories.
type Router struct {
	handler *Handler
	chiMW   *ChiMiddleware
	authMW  func(http.Handler) http.Handler
}

// NewRouter creates a Router. jwtManager may be nil, which disables
// authentication on protected routes.
func NewRouter(handler *Handler, chiMW *ChiMiddleware, jwtManager *auth.JWTManager) *Router {
	return &Router{
		handler: handler,
		chiMW:   chiMW,
		authMW:  auth.Middleware(jwtManager),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMW.CORS())
	if router.handler.perf != nil {
		r.Use(router.handler.perf.Middleware)
	}

	// Health endpoints: unauthenticated, permissive rate limit for
	// monitoring tools.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMW.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})

	// Login gets the strictest rate limit to slow brute force attempts.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(router.chiMW.RateLimitLogin())
		r.Use(APISecurityHeaders())
		r.Post("/login", router.handler.Login)
	})

	// Core data endpoints: authenticated, instrumented, compressed.
	r.Route("/api/v1/accounts", func(r chi.Router) {
		r.Use(router.chiMW.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)
		r.Use(router.authMW)

		r.Get("/", router.handler.AccountList)
		r.Post("/", router.handler.AccountCreate)
		r.Post("/batch-delete", router.handler.AccountsDelete)
		r.Get("/{id}", router.handler.AccountGet)
		r.Delete("/{id}", router.handler.AccountDelete)
		r.Get("/{id}/synclog", router.handler.AccountSyncLog)
	})

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(router.authMW)

		// Triggers fan out into remote calls; status is polled frequently.
		instrumented := r.With(middleware.PrometheusMetrics)
		instrumented.With(router.chiMW.RateLimitSync()).Post("/run", router.handler.SyncRun)
		instrumented.With(router.chiMW.RateLimitSync()).Post("/stop", router.handler.SyncStop)
		instrumented.With(router.chiMW.RateLimitPolling()).Get("/status", router.handler.SyncStatus)

		// Streaming endpoints skip the metrics wrapper, which would break
		// the WebSocket hijack and SSE flushing.
		r.Get("/ws", router.handler.WebSocket)
		r.Get("/stream", router.handler.SSE)
	})

	r.Route("/api/v1/notes", func(r chi.Router) {
		r.Use(router.chiMW.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)
		r.Use(router.authMW)

		r.Get("/", router.handler.NotesList)
		r.With(router.chiMW.RateLimitExport()).Get("/export", router.handler.NotesExportCSV)
		r.Get("/{id}", router.handler.NoteGet)
	})

	r.Route("/api/v1/credential", func(r chi.Router) {
		r.Use(router.chiMW.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.authMW)

		r.Put("/", router.handler.CredentialSet)
		r.Get("/status", router.handler.CredentialStatus)
	})

	r.Route("/api/v1/system", func(r chi.Router) {
		r.Use(router.chiMW.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(router.authMW)

		r.Get("/performance", router.handler.SystemPerformance)
	})

	// Observability
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

// Package metrics provides Prometheus instrumentation for sync runs, remote
// platform requests, broadcast fan-out and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Sync Orchestration Metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of per-account sync runs by mode and final status",
		},
		[]string{"mode", "status"},
	)

	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Duration of per-account sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"mode"},
	)

	SyncItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_items_total",
			Help: "Total number of item attempts by outcome category",
		},
		[]string{"outcome"},
	)

	SyncBatchActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_batch_active",
			Help: "1 while a sync batch is running, 0 otherwise",
		},
	)

	SyncStoppedAccounts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_stopped_accounts_total",
			Help: "Total number of accounts stopped by operator request",
		},
	)

	SyncStaleRunsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_stale_runs_swept_total",
			Help: "Total number of orphaned processing runs marked failed",
		},
	)

	// Remote Platform Client Metrics
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_requests_total",
			Help: "Total number of remote platform requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_request_duration_seconds",
			Help:    "Remote platform request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RemoteTokenRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remote_token_refreshes_total",
			Help: "Total number of silent auth token refreshes",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breakers",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures per circuit breaker",
		},
		[]string{"name"},
	)

	// Broadcast Metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WebSocketErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
	)

	SSESubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_subscribers",
			Help: "Current number of active SSE subscribers",
		},
	)

	SSEEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sse_events_dropped_total",
			Help: "Total number of SSE events dropped due to slow subscribers",
		},
	)

	BroadcastEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_events_total",
			Help: "Total number of events published by type",
		},
		[]string{"type"},
	)

	// Media Queue Metrics
	MediaDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_downloads_total",
			Help: "Total number of media downloads by result",
		},
		[]string{"result"},
	)

	MediaQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_queue_depth",
			Help: "Current number of queued media download tasks",
		},
	)
)

// RecordAPIRequest records metrics for one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSyncRun records the outcome of one per-account run.
func RecordSyncRun(mode, status string, duration time.Duration) {
	SyncRunsTotal.WithLabelValues(mode, status).Inc()
	SyncRunDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordRemoteRequest records one remote platform call.
func RecordRemoteRequest(operation, result string, duration time.Duration) {
	RemoteRequestsTotal.WithLabelValues(operation, result).Inc()
	RemoteRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

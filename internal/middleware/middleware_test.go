// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRequestIDGeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("expected a request ID in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("response header %q does not match context ID %q", got, seen)
	}
}

func TestRequestIDHonorsUpstreamHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "upstream-id-123" {
		t.Fatalf("expected upstream ID to be preserved, got %q", seen)
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetRequestID(req.Context()); got != "" {
		t.Fatalf("expected empty ID, got %q", got)
	}
}

func TestCompressionGzipsWhenAccepted(t *testing.T) {
	body := strings.Repeat("note payload ", 200)
	handler := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", got)
	}

	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	decoded, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	if string(decoded) != body {
		t.Fatal("decompressed body does not match original")
	}
}

func TestCompressionSkipsWithoutAcceptEncoding(t *testing.T) {
	handler := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("Content-Encoding") != "" {
		t.Fatal("expected uncompressed response")
	}
	if rec.Body.String() != "plain" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestCompressionSkipsEventStream(t *testing.T) {
	handler := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(": keepalive\n\n"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept", "text/event-stream")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "" {
		t.Fatal("SSE responses must not be compressed")
	}
}

func TestPrometheusMetricsPreservesStatus(t *testing.T) {
	handler := PrometheusMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status passthrough, got %d", rec.Code)
	}
}

func TestPerformanceMonitorStats(t *testing.T) {
	pm := NewPerformanceMonitor(100)

	for i := 0; i < 10; i++ {
		pm.RecordRequest(&RequestMetrics{
			Path:       "/api/v1/notes",
			Method:     http.MethodGet,
			DurationMS: int64(i + 1),
			StatusCode: http.StatusOK,
			Timestamp:  time.Now(),
		})
	}
	pm.RecordRequest(&RequestMetrics{
		Path:       "/api/v1/accounts",
		Method:     http.MethodGet,
		DurationMS: 5,
		StatusCode: http.StatusOK,
		Timestamp:  time.Now(),
	})

	stats := pm.GetStats()
	if len(stats) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(stats))
	}
	// Busiest endpoint first.
	if stats[0].Path != "GET /api/v1/notes" {
		t.Fatalf("unexpected ordering, first endpoint %q", stats[0].Path)
	}
	if stats[0].RequestCount != 10 {
		t.Fatalf("expected 10 requests, got %d", stats[0].RequestCount)
	}
	if stats[0].MinDuration != 1 || stats[0].MaxDuration != 10 {
		t.Fatalf("unexpected min/max: %d/%d", stats[0].MinDuration, stats[0].MaxDuration)
	}
	if stats[0].P50Duration < 1 || stats[0].P50Duration > 10 {
		t.Fatalf("p50 out of range: %d", stats[0].P50Duration)
	}
}

func TestPerformanceMonitorSlidingWindow(t *testing.T) {
	pm := NewPerformanceMonitor(3)

	for i := 0; i < 5; i++ {
		pm.RecordRequest(&RequestMetrics{
			Path:       "/api/v1/sync/status",
			Method:     http.MethodGet,
			DurationMS: int64(i),
		})
	}

	recent := pm.GetRecentMetrics(10)
	if len(recent) != 3 {
		t.Fatalf("expected window of 3, got %d", len(recent))
	}
	if recent[0].DurationMS != 2 || recent[2].DurationMS != 4 {
		t.Fatalf("expected oldest entries evicted, got %+v", recent)
	}
}

func TestPerformanceMiddlewareRecords(t *testing.T) {
	pm := NewPerformanceMonitor(10)
	handler := pm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/accounts/missing", nil))

	recent := pm.GetRecentMetrics(1)
	if len(recent) != 1 {
		t.Fatal("expected one recorded metric")
	}
	if recent[0].StatusCode != http.StatusNotFound {
		t.Fatalf("expected recorded status 404, got %d", recent[0].StatusCode)
	}
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
sse.go - Server-Sent Events transport

One-way streaming for consumers that cannot hold a WebSocket. Each
subscriber gets a bounded queue; when it fills, the oldest queued event is
dropped so the stream always carries the freshest state. A comment line is
written every heartbeat interval to keep proxies from reaping idle
connections.
*/

package broadcast

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/metrics"
)

const (
	// sseQueueSize bounds each subscriber's pending events.
	sseQueueSize = 64
	// sseHeartbeat keeps idle connections alive through proxies.
	sseHeartbeat = 30 * time.Second
)

// sseSubscriber is one connected stream.
type sseSubscriber struct {
	queue chan Event
	// subs filters by account ID; nil means all.
	subs map[string]struct{}
}

func (s *sseSubscriber) wants(event Event) bool {
	if event.AccountID == "" || s.subs == nil {
		return true
	}
	_, ok := s.subs[event.AccountID]
	return ok
}

// SSEServer implements Broadcaster over Server-Sent Events.
type SSEServer struct {
	mu   sync.Mutex
	subs map[*sseSubscriber]bool
}

// NewSSEServer creates an empty SSE fan-out.
func NewSSEServer() *SSEServer {
	return &SSEServer{subs: make(map[*sseSubscriber]bool)}
}

var _ Broadcaster = (*SSEServer)(nil)

// Publish fans the event out to matching subscribers, dropping the oldest
// queued event for any subscriber that is full.
func (s *SSEServer) Publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs {
		if !sub.wants(event) {
			continue
		}
		select {
		case sub.queue <- event:
		default:
			select {
			case <-sub.queue:
				metrics.SSEEventsDropped.Inc()
			default:
			}
			select {
			case sub.queue <- event:
			default:
			}
		}
	}
}

func (s *SSEServer) subscribe(accountIDs []string) *sseSubscriber {
	sub := &sseSubscriber{queue: make(chan Event, sseQueueSize)}
	if len(accountIDs) > 0 {
		sub.subs = make(map[string]struct{}, len(accountIDs))
		for _, id := range accountIDs {
			sub.subs[id] = struct{}{}
		}
	}

	s.mu.Lock()
	s.subs[sub] = true
	total := len(s.subs)
	s.mu.Unlock()

	metrics.SSESubscribers.Set(float64(total))
	return sub
}

func (s *SSEServer) unsubscribe(sub *sseSubscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	total := len(s.subs)
	s.mu.Unlock()

	metrics.SSESubscribers.Set(float64(total))
}

// ServeHTTP streams events until the client disconnects. The optional
// account_id query parameter (repeatable) narrows the stream.
func (s *SSEServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := s.subscribe(r.URL.Query()["account_id"])
	defer s.unsubscribe(sub)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case event := <-sub.queue:
			data, err := event.Marshal()
			if err != nil {
				logging.Error().Err(err).Str("event_type", event.Type).Msg("failed to marshal SSE event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

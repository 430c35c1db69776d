// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
breaker.go - circuit breaker decorator for the platform client

Wraps a Client so that a run of platform failures opens the circuit and
rejects calls locally instead of hammering a struggling upstream. Rejected
calls surface as transient errors so the sync pacer backs off rather than
marking items permanently failed.
*/

package remote

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/metrics"
)

const breakerName = "platform_api"

// Ensure BreakerClient implements Client
var _ Client = (*BreakerClient)(nil)

// BreakerClient decorates a Client with a shared circuit breaker.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerClient wraps inner with production-tuned breaker settings:
// trip when at least 60% of a window of 10+ requests fail, probe again
// after 2 minutes with up to 3 half-open requests.
func NewBreakerClient(inner Client) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Unauthorized and unavailable are verdicts about the credential
			// or the item, not upstream health; only throttling and
			// transient faults count against the circuit.
			if err == nil {
				return true
			}
			return IsUnauthorized(err) || IsUnavailable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state changed")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(
				name, stateToString(from), stateToString(to),
			).Inc()
		},
	}

	bc := &BreakerClient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(stateToFloat(gobreaker.StateClosed))
	return bc
}

// State returns the current breaker state for health reporting.
func (c *BreakerClient) State() gobreaker.State {
	return c.breaker.State()
}

func (c *BreakerClient) FetchProfile(ctx context.Context, platformUserID string) (*Profile, error) {
	return execute(c, "fetch_profile", func() (*Profile, error) {
		return c.inner.FetchProfile(ctx, platformUserID)
	})
}

func (c *BreakerClient) FetchPage(ctx context.Context, platformUserID, cursor string) (*Page, error) {
	return execute(c, "fetch_page", func() (*Page, error) {
		return c.inner.FetchPage(ctx, platformUserID, cursor)
	})
}

func (c *BreakerClient) FetchDetail(ctx context.Context, itemID string) (*ItemDetail, error) {
	return execute(c, "fetch_detail", func() (*ItemDetail, error) {
		return c.inner.FetchDetail(ctx, itemID)
	})
}

func (c *BreakerClient) FetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	return execute(c, "fetch_media", func() ([]byte, error) {
		return c.inner.FetchMedia(ctx, mediaURL)
	})
}

// execute runs fn through the breaker, translating breaker rejections into
// transient errors the caller's retry logic understands.
func execute[T any](c *BreakerClient, op string, fn func() (T, error)) (T, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
			return zero, &Error{Kind: KindTransient, Op: op, Message: "platform circuit breaker open"}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return result.(T), nil
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

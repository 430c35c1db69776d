// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
pacer.go - adaptive inter-request pacing

The platform throttles aggressively and non-deterministically. The pacer
keeps a current base delay that doubles on throttling, recovers gradually
after sustained success, jitters every pause so timing stays non-uniform,
and occasionally inserts a longer "reading" pause.
*/

package sync

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/tomtom215/notetrace/internal/logging"
)

const (
	// backoffFactor doubles the base delay after each throttle hit.
	backoffFactor = 2.0
	// recoveryFactor shrinks the base delay after sustained success.
	recoveryFactor = 0.7
	// recoveryThreshold successes in a row trigger one recovery step.
	recoveryThreshold = 3
	// jitterFraction spreads each pause ±20% around the base.
	jitterFraction = 0.2
	// longPauseChance inserts an occasional multi-base pause.
	longPauseChance = 0.15
	// longPauseFactor scales the occasional long pause.
	longPauseFactor = 3.0
)

// Pacer spaces requests with an adaptive, jittered delay.
type Pacer struct {
	mu        sync.Mutex
	base      time.Duration
	min       time.Duration
	max       time.Duration
	successes int
	rng       *rand.Rand

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer starting at initial, bounded to [min, max].
func NewPacer(min, max, initial time.Duration) *Pacer {
	p := &Pacer{
		base:  clampDuration(initial, min, max),
		min:   min,
		max:   max,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepCtx,
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// Wait pauses for the next jittered interval, returning early with the
// context error on cancellation.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	d := p.jittered(p.base)
	if p.rng.Float64() < longPauseChance {
		d = p.jittered(time.Duration(float64(p.base) * longPauseFactor))
	}
	p.mu.Unlock()

	return p.sleep(ctx, d)
}

// WaitBackoff pauses for attempt-scaled backoff after a throttle hit:
// base * 2^attempt, jittered and clamped. attempt is zero-based.
func (p *Pacer) WaitBackoff(ctx context.Context, attempt int) error {
	p.mu.Lock()
	d := p.base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.max {
			d = p.max
			break
		}
	}
	d = p.jittered(clampDuration(d, p.min, p.max))
	p.mu.Unlock()

	return p.sleep(ctx, d)
}

// RecordSuccess notes a clean request. After enough consecutive successes
// the base delay shrinks one step toward the floor.
func (p *Pacer) RecordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.successes++
	if p.successes < recoveryThreshold {
		return
	}
	p.successes = 0

	prev := p.base
	p.base = clampDuration(time.Duration(float64(p.base)*recoveryFactor), p.min, p.max)
	if p.base != prev {
		logging.Trace().Dur("from", prev).Dur("to", p.base).Msg("pacer recovered")
	}
}

// RecordRateLimit notes a throttle hit and doubles the base delay.
func (p *Pacer) RecordRateLimit() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.successes = 0
	prev := p.base
	p.base = clampDuration(time.Duration(float64(p.base)*backoffFactor), p.min, p.max)
	logging.Debug().Dur("from", prev).Dur("to", p.base).Msg("pacer backed off after throttle")
}

// Base returns the current base delay.
func (p *Pacer) Base() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.base
}

// jittered spreads d by ±jitterFraction. Caller holds p.mu.
func (p *Pacer) jittered(d time.Duration) time.Duration {
	spread := 1 + jitterFraction*(2*p.rng.Float64()-1)
	return time.Duration(float64(d) * spread)
}

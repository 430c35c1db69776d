// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package sync

import (
	"context"
	"testing"
	"time"
)

func TestPacerBacksOffAndClamps(t *testing.T) {
	p := NewPacer(5*time.Second, 60*time.Second, 10*time.Second)

	p.RecordRateLimit()
	if got := p.Base(); got != 20*time.Second {
		t.Errorf("base after one throttle = %v, want 20s", got)
	}
	p.RecordRateLimit()
	p.RecordRateLimit()
	if got := p.Base(); got != 60*time.Second {
		t.Errorf("base must clamp at max, got %v", got)
	}
}

func TestPacerRecoversAfterSustainedSuccess(t *testing.T) {
	p := NewPacer(5*time.Second, 300*time.Second, 100*time.Second)

	p.RecordSuccess()
	p.RecordSuccess()
	if got := p.Base(); got != 100*time.Second {
		t.Errorf("base should not move before the success threshold, got %v", got)
	}
	p.RecordSuccess()
	if got := p.Base(); got != 70*time.Second {
		t.Errorf("base after recovery step = %v, want 70s", got)
	}

	// A throttle resets the success streak.
	p.RecordSuccess()
	p.RecordSuccess()
	p.RecordRateLimit()
	p.RecordSuccess()
	p.RecordSuccess()
	base := p.Base()
	p.RecordSuccess()
	if got := p.Base(); got >= base {
		t.Errorf("third success after reset should recover, got %v from %v", got, base)
	}
}

func TestPacerInitialClamp(t *testing.T) {
	p := NewPacer(5*time.Second, 300*time.Second, time.Second)
	if got := p.Base(); got != 5*time.Second {
		t.Errorf("initial below floor should clamp up, got %v", got)
	}
}

func TestPacerWaitJitterBounds(t *testing.T) {
	p := NewPacer(100*time.Millisecond, time.Second, 100*time.Millisecond)

	var waited []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}

	for i := 0; i < 50; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}

	min := time.Duration(float64(100*time.Millisecond) * (1 - jitterFraction))
	max := time.Duration(float64(100*time.Millisecond) * longPauseFactor * (1 + jitterFraction))
	for _, d := range waited {
		if d < min || d > max {
			t.Errorf("wait %v outside [%v, %v]", d, min, max)
		}
	}
}

func TestPacerWaitHonorsCancellation(t *testing.T) {
	p := NewPacer(time.Hour, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); err == nil {
		t.Error("Wait on a cancelled context should return its error")
	}
}

func TestPacerBackoffScalesWithAttempt(t *testing.T) {
	p := NewPacer(time.Second, 100*time.Second, time.Second)

	var waited []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}

	for attempt := 0; attempt < 3; attempt++ {
		if err := p.WaitBackoff(context.Background(), attempt); err != nil {
			t.Fatalf("WaitBackoff failed: %v", err)
		}
	}

	// Expected bases: 1s, 2s, 4s, each jittered ±20%.
	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, d := range waited {
		lo := time.Duration(float64(expected[i]) * (1 - jitterFraction))
		hi := time.Duration(float64(expected[i]) * (1 + jitterFraction))
		if d < lo || d > hi {
			t.Errorf("attempt %d waited %v, want within [%v, %v]", i, d, lo, hi)
		}
	}
}

func TestBatchTokenStopIsIdempotent(t *testing.T) {
	tok := newBatchToken(context.Background())

	if tok.Stopped() {
		t.Fatal("fresh token should not be stopped")
	}
	if !tok.Stop() {
		t.Error("first Stop should report the flip")
	}
	if tok.Stop() {
		t.Error("second Stop should be a no-op")
	}
	if !tok.Stopped() {
		t.Error("token should remain stopped")
	}
	if tok.Err() == nil {
		t.Error("stopped token's context should be cancelled")
	}
}

func TestBatchTokenDistinguishesShutdown(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	tok := newBatchToken(parent)
	cancel()

	if tok.Err() == nil {
		t.Error("token should observe parent cancellation")
	}
	if tok.Stopped() {
		t.Error("parent cancellation is not an operator stop")
	}
}

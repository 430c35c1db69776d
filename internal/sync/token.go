// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package sync

import (
	"context"
	"sync/atomic"
)

// batchToken scopes cancellation to a single batch. A new batch gets a new
// token, so a stop request aimed at one batch can never leak into the next.
type batchToken struct {
	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool
}

func newBatchToken(parent context.Context) *batchToken {
	ctx, cancel := context.WithCancel(parent)
	return &batchToken{ctx: ctx, cancel: cancel}
}

// Stop requests cooperative cancellation. Idempotent; reports whether this
// call was the one that flipped the token.
func (t *batchToken) Stop() bool {
	first := t.stopped.CompareAndSwap(false, true)
	t.cancel()
	return first
}

// Stopped reports whether an operator requested a stop, as opposed to the
// parent context ending (shutdown).
func (t *batchToken) Stopped() bool {
	return t.stopped.Load()
}

// Err returns nil while the batch may continue.
func (t *batchToken) Err() error {
	return t.ctx.Err()
}

// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package broadcast

import "github.com/tomtom215/notetrace/internal/metrics"

// Dispatcher fans one Publish out to every attached transport. Producers
// hold a single Broadcaster and stay unaware of which transports exist.
type Dispatcher struct {
	transports []Broadcaster
}

// NewDispatcher bundles transports into one Broadcaster. Order is delivery
// order; all transports are non-blocking by contract.
func NewDispatcher(transports ...Broadcaster) *Dispatcher {
	return &Dispatcher{transports: transports}
}

var _ Broadcaster = (*Dispatcher)(nil)

func (d *Dispatcher) Publish(event Event) {
	metrics.BroadcastEventsTotal.WithLabelValues(event.Type).Inc()
	for _, t := range d.transports {
		t.Publish(event)
	}
}

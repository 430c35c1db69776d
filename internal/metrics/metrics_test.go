// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/accounts", "200"))

	RecordAPIRequest("GET", "/api/v1/accounts", "200", 25*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/accounts", "200"))
	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %f -> %f", before, after)
	}
}

func TestRecordSyncRun(t *testing.T) {
	before := testutil.ToFloat64(SyncRunsTotal.WithLabelValues("deep", "completed"))

	RecordSyncRun("deep", "completed", 45*time.Second)

	after := testutil.ToFloat64(SyncRunsTotal.WithLabelValues("deep", "completed"))
	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %f -> %f", before, after)
	}
}

func TestRecordRemoteRequest(t *testing.T) {
	before := testutil.ToFloat64(RemoteRequestsTotal.WithLabelValues("fetch_page", "success"))

	RecordRemoteRequest("fetch_page", "success", 100*time.Millisecond)

	after := testutil.ToFloat64(RemoteRequestsTotal.WithLabelValues("fetch_page", "success"))
	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %f -> %f", before, after)
	}
}

func TestSyncItemOutcomeCounter(t *testing.T) {
	before := testutil.ToFloat64(SyncItemsTotal.WithLabelValues("rateLimited"))

	SyncItemsTotal.WithLabelValues("rateLimited").Inc()

	after := testutil.ToFloat64(SyncItemsTotal.WithLabelValues("rateLimited"))
	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %f -> %f", before, after)
	}
}

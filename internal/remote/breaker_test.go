// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package remote

import (
	"context"
	"testing"

	"github.com/sony/gobreaker/v2"
)

// stubClient lets tests drive the breaker with scripted outcomes.
type stubClient struct {
	pageErr error
	pages   int
}

func (s *stubClient) FetchProfile(ctx context.Context, platformUserID string) (*Profile, error) {
	return &Profile{UserID: platformUserID}, nil
}

func (s *stubClient) FetchPage(ctx context.Context, platformUserID, cursor string) (*Page, error) {
	s.pages++
	if s.pageErr != nil {
		return nil, s.pageErr
	}
	return &Page{}, nil
}

func (s *stubClient) FetchDetail(ctx context.Context, itemID string) (*ItemDetail, error) {
	return &ItemDetail{ListItem: ListItem{ID: itemID}}, nil
}

func (s *stubClient) FetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	return []byte("bytes"), nil
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	stub := &stubClient{}
	client := NewBreakerClient(stub)

	page, err := client.FetchPage(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if page == nil {
		t.Fatal("expected a page")
	}
	if client.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", client.State())
	}
}

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	stub := &stubClient{pageErr: &Error{Kind: KindTransient, Op: "fetch_page", Message: "upstream down"}}
	client := NewBreakerClient(stub)

	// Enough failures to exceed the 60% / 10 request trip threshold.
	for i := 0; i < 12; i++ {
		_, _ = client.FetchPage(context.Background(), "u1", "")
	}

	if client.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", client.State())
	}

	before := stub.pages
	_, err := client.FetchPage(context.Background(), "u1", "")
	if err == nil {
		t.Fatal("expected rejection while open")
	}
	if !IsTransient(err) {
		t.Errorf("breaker rejection should be transient, got %v", err)
	}
	if stub.pages != before {
		t.Error("open breaker should not reach the inner client")
	}
}

func TestBreakerIgnoresCredentialAndItemVerdicts(t *testing.T) {
	stub := &stubClient{pageErr: &Error{Kind: KindUnauthorized, Op: "fetch_page", Message: "session expired"}}
	client := NewBreakerClient(stub)

	for i := 0; i < 20; i++ {
		_, err := client.FetchPage(context.Background(), "u1", "")
		if !IsUnauthorized(err) {
			t.Fatalf("call %d: error should pass through unchanged, got %v", i, err)
		}
	}

	if client.State() != gobreaker.StateClosed {
		t.Errorf("unauthorized errors must not trip the breaker, state = %v", client.State())
	}
}

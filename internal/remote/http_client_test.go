// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(baseURL string) *HTTPClient {
	return NewHTTPClient(Config{
		BaseURL:           baseURL,
		UserAgent:         "notetrace-test/1.0",
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000,
		RequestBurst:      1000,
		PageSize:          30,
		Cookie: func(ctx context.Context) (string, error) {
			return "web_session=test", nil
		},
	})
}

func TestFetchPageSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sns/web/v1/user_posted" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "u100" {
			t.Errorf("user_id = %q, want u100", got)
		}
		if got := r.Header.Get("Cookie"); got != "web_session=test" {
			t.Errorf("cookie = %q", got)
		}
		fmt.Fprint(w, `{
			"success": true, "code": 0, "msg": "",
			"data": {
				"notes": [
					{"note_id": "n1", "display_title": "First", "type": "normal",
					 "cover": {"url_default": "https://cdn.example/n1.jpg"},
					 "interact_info": {"liked_count": "1208", "collected_count": "1.2万", "comment_count": "", "share_count": "3万+"}}
				],
				"cursor": "abc",
				"has_more": true
			}
		}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	page, err := client.FetchPage(context.Background(), "u100", "")
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}

	if len(page.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(page.Items))
	}
	item := page.Items[0]
	if item.ID != "n1" || item.Title != "First" || item.Type != "normal" {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.LikeCount != 1208 {
		t.Errorf("LikeCount = %d, want 1208", item.LikeCount)
	}
	if item.CollectCount != 12000 {
		t.Errorf("CollectCount = %d, want 12000", item.CollectCount)
	}
	if item.ShareCount != 30000 {
		t.Errorf("ShareCount = %d, want 30000", item.ShareCount)
	}
	if page.NextCursor != "abc" || !page.HasMore {
		t.Errorf("cursor = %q hasMore = %v", page.NextCursor, page.HasMore)
	}
	if page.TokenRefreshed {
		t.Error("TokenRefreshed should be false on a clean fetch")
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{
			name:     "http 429",
			status:   http.StatusTooManyRequests,
			body:     "slow down",
			wantKind: KindRateLimited,
		},
		{
			name:     "http 401",
			status:   http.StatusUnauthorized,
			body:     "",
			wantKind: KindUnauthorized,
		},
		{
			name:     "http 403",
			status:   http.StatusForbidden,
			body:     "",
			wantKind: KindUnauthorized,
		},
		{
			name:     "http 404",
			status:   http.StatusNotFound,
			body:     "",
			wantKind: KindUnavailable,
		},
		{
			name:     "http 500",
			status:   http.StatusInternalServerError,
			body:     "",
			wantKind: KindTransient,
		},
		{
			name:     "envelope throttle message",
			status:   http.StatusOK,
			body:     `{"success": false, "code": -1, "msg": "频次异常，请稍后重试"}`,
			wantKind: KindRateLimited,
		},
		{
			name:     "envelope credential code",
			status:   http.StatusOK,
			body:     `{"success": false, "code": 10062, "msg": "参数错误"}`,
			wantKind: KindUnauthorized,
		},
		{
			name:     "envelope session expired message",
			status:   http.StatusOK,
			body:     `{"success": false, "code": -100, "msg": "登录已过期"}`,
			wantKind: KindUnauthorized,
		},
		{
			name:     "envelope unknown failure",
			status:   http.StatusOK,
			body:     `{"success": false, "code": -510001, "msg": "系统繁忙"}`,
			wantKind: KindTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.FetchPage(context.Background(), "u1", "")
			if err == nil {
				t.Fatal("expected error")
			}
			got, ok := KindOf(err)
			if !ok {
				t.Fatalf("expected a classified error, got %v", err)
			}
			if got != tt.wantKind {
				t.Errorf("KindOf = %q, want %q", got, tt.wantKind)
			}
		})
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(server.URL)
	_, err := client.FetchPage(context.Background(), "u1", "")
	if !IsTransient(err) {
		t.Errorf("connection refused should be transient, got %v", err)
	}
}

func TestSilentTokenRefresh(t *testing.T) {
	var feedCalls, refreshCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sns/web/v1/feed":
			feedCalls++
			if feedCalls == 1 {
				fmt.Fprint(w, `{"success": false, "code": 461, "msg": "token expired"}`)
				return
			}
			if got := r.URL.Query().Get("xsec_token"); got != "fresh-token" {
				t.Errorf("retry xsec_token = %q, want fresh-token", got)
			}
			fmt.Fprint(w, `{
				"success": true, "code": 0, "msg": "",
				"data": {"items": [{"id": "n1", "note_card": {"title": "T", "desc": "D", "type": "normal", "time": 1756600000000,
					"interact_info": {"liked_count": "5"},
					"image_list": [{"url_default": "https://cdn.example/a.jpg"}]}}]}
			}`)
		case "/api/sns/web/v1/user/selfinfo":
			refreshCalls++
			fmt.Fprint(w, `{"success": true, "code": 0, "msg": "", "data": {"xsec_token": "fresh-token"}}`)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	detail, err := client.FetchDetail(context.Background(), "n1")
	if err != nil {
		t.Fatalf("FetchDetail failed: %v", err)
	}

	if feedCalls != 2 || refreshCalls != 1 {
		t.Errorf("feedCalls = %d refreshCalls = %d, want 2 and 1", feedCalls, refreshCalls)
	}
	if !detail.TokenRefreshed {
		t.Error("TokenRefreshed should be true after a silent refresh")
	}
	if detail.Desc != "D" {
		t.Errorf("Desc = %q, want D", detail.Desc)
	}
	if detail.PublishTime == nil {
		t.Error("PublishTime should be populated")
	}
	if len(detail.MediaURLs) != 1 {
		t.Errorf("got %d media URLs, want 1", len(detail.MediaURLs))
	}
}

func TestFetchDetailEmptyFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "code": 0, "msg": "", "data": {"items": []}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchDetail(context.Background(), "gone")
	if !IsUnavailable(err) {
		t.Errorf("empty feed should map to unavailable, got %v", err)
	}
}

func TestFetchProfileCachesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "code": 0, "msg": "",
			"data": {"user_id": "u100", "nickname": "Traveler", "avatar": "https://cdn.example/av.jpg", "notes_count": 42, "xsec_token": "tok-1"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	profile, err := client.FetchProfile(context.Background(), "u100")
	if err != nil {
		t.Fatalf("FetchProfile failed: %v", err)
	}
	if profile.Nickname != "Traveler" || profile.NoteCount != 42 {
		t.Errorf("unexpected profile: %+v", profile)
	}

	client.tokenMu.Lock()
	token := client.searchToken
	client.tokenMu.Unlock()
	if token != "tok-1" {
		t.Errorf("searchToken = %q, want tok-1", token)
	}
}

func TestCookieProviderFailure(t *testing.T) {
	client := NewHTTPClient(Config{
		BaseURL:           "http://localhost:1",
		RequestsPerSecond: 1000,
		RequestBurst:      1,
		Cookie: func(ctx context.Context) (string, error) {
			return "", errors.New("no credential configured")
		},
	})

	_, err := client.FetchPage(context.Background(), "u1", "")
	if !IsUnauthorized(err) {
		t.Errorf("missing credential should be unauthorized, got %v", err)
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"0", 0},
		{"1208", 1208},
		{"1.2万", 12000},
		{"3万+", 30000},
		{"1亿", 100000000},
		{"  42 ", 42},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseCount(tt.in); got != tt.want {
			t.Errorf("parseCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestErrorKindHelpers(t *testing.T) {
	rateLimited := &Error{Kind: KindRateLimited, Op: "fetch_page"}
	wrapped := fmt.Errorf("page 3: %w", rateLimited)

	if !IsRateLimited(wrapped) {
		t.Error("IsRateLimited should see through wrapping")
	}
	if kind, ok := KindOf(wrapped); !ok || kind != KindRateLimited {
		t.Errorf("KindOf = %q, %v", kind, ok)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("plain errors should have no kind")
	}
}

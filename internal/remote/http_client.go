// Notetrace - Tracked Account Note Sync and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notetrace

/*
http_client.go - content platform web API client

Implements profile lookup, note list pagination, note detail fetch and media
download against the platform's JSON envelope API. Responses arrive as
{"success": bool, "code": int, "msg": string, "data": {...}}; non-success
envelopes and transport failures are classified into typed *Error values.
*/

package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/notetrace/internal/logging"
	"github.com/tomtom215/notetrace/internal/metrics"
)

// CookieFunc supplies the current platform session cookie. It is called per
// request so a refreshed credential takes effect without rebuilding the client.
type CookieFunc func(ctx context.Context) (string, error)

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)

// HTTPClient is the real platform API client.
type HTTPClient struct {
	baseURL    string
	userAgent  string
	cookie     CookieFunc
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int

	// tokenMu guards the search token refreshed on expiry.
	tokenMu     sync.Mutex
	searchToken string
}

// Config holds HTTPClient construction parameters.
type Config struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	RequestBurst      int
	PageSize          int
	Cookie            CookieFunc
}

// NewHTTPClient creates a platform API client with client-side request pacing.
func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		cookie:    cfg.Cookie,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestBurst),
		pageSize: cfg.PageSize,
	}
}

// envelope is the platform's standard JSON response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// interactInfo carries the counter fields, which the platform serializes as
// strings (possibly abbreviated, e.g. "1.2万").
type interactInfo struct {
	LikedCount     string `json:"liked_count"`
	CollectedCount string `json:"collected_count"`
	CommentCount   string `json:"comment_count"`
	ShareCount     string `json:"share_count"`
}

type listNote struct {
	NoteID string `json:"note_id"`
	Title  string `json:"display_title"`
	Type   string `json:"type"`
	Cover  struct {
		URL string `json:"url_default"`
	} `json:"cover"`
	Interact interactInfo `json:"interact_info"`
}

type listData struct {
	Notes   []listNote `json:"notes"`
	Cursor  string     `json:"cursor"`
	HasMore bool       `json:"has_more"`
}

type profileData struct {
	UserID    string `json:"user_id"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar"`
	NoteCount int    `json:"notes_count"`
	Token     string `json:"xsec_token"`
}

type detailData struct {
	Items []struct {
		ID       string `json:"id"`
		NoteCard struct {
			Title     string       `json:"title"`
			Desc      string       `json:"desc"`
			Type      string       `json:"type"`
			TimeMilli int64        `json:"time"`
			Interact  interactInfo `json:"interact_info"`
			ImageList []struct {
				URLDefault string `json:"url_default"`
			} `json:"image_list"`
			Video struct {
				Media struct {
					Stream struct {
						H264 []struct {
							MasterURL string `json:"master_url"`
						} `json:"h264"`
					} `json:"stream"`
				} `json:"media"`
			} `json:"video"`
		} `json:"note_card"`
	} `json:"items"`
}

// FetchProfile looks up a publisher's public profile and caches the search
// token attached to it.
func (c *HTTPClient) FetchProfile(ctx context.Context, platformUserID string) (*Profile, error) {
	q := url.Values{"target_user_id": {platformUserID}}

	var data profileData
	if _, err := c.getJSON(ctx, "fetch_profile", "/api/sns/web/v1/user/otherinfo", q, &data); err != nil {
		return nil, err
	}

	if data.Token != "" {
		c.tokenMu.Lock()
		c.searchToken = data.Token
		c.tokenMu.Unlock()
	}

	return &Profile{
		UserID:    data.UserID,
		Nickname:  data.Nickname,
		AvatarURL: data.AvatarURL,
		NoteCount: data.NoteCount,
	}, nil
}

// FetchPage fetches one page of the publisher's note catalog.
func (c *HTTPClient) FetchPage(ctx context.Context, platformUserID, cursor string) (*Page, error) {
	q := url.Values{
		"user_id": {platformUserID},
		"cursor":  {cursor},
		"num":     {strconv.Itoa(c.pageSize)},
	}

	var data listData
	refreshed, err := c.getJSON(ctx, "fetch_page", "/api/sns/web/v1/user_posted", q, &data)
	if err != nil {
		return nil, err
	}

	page := &Page{
		Items:          make([]ListItem, 0, len(data.Notes)),
		NextCursor:     data.Cursor,
		HasMore:        data.HasMore,
		TokenRefreshed: refreshed,
	}
	for _, n := range data.Notes {
		page.Items = append(page.Items, ListItem{
			ID:           n.NoteID,
			Title:        n.Title,
			Type:         n.Type,
			CoverURL:     n.Cover.URL,
			LikeCount:    parseCount(n.Interact.LikedCount),
			CollectCount: parseCount(n.Interact.CollectedCount),
			CommentCount: parseCount(n.Interact.CommentCount),
			ShareCount:   parseCount(n.Interact.ShareCount),
		})
	}
	return page, nil
}

// FetchDetail fetches the full detail of one note.
func (c *HTTPClient) FetchDetail(ctx context.Context, itemID string) (*ItemDetail, error) {
	q := url.Values{"source_note_id": {itemID}}

	var data detailData
	refreshed, err := c.getJSON(ctx, "fetch_detail", "/api/sns/web/v1/feed", q, &data)
	if err != nil {
		return nil, err
	}
	if len(data.Items) == 0 {
		return nil, &Error{Kind: KindUnavailable, Op: "fetch_detail", Message: "note not present in feed response"}
	}

	card := data.Items[0].NoteCard
	detail := &ItemDetail{
		ListItem: ListItem{
			ID:           data.Items[0].ID,
			Title:        card.Title,
			Type:         card.Type,
			LikeCount:    parseCount(card.Interact.LikedCount),
			CollectCount: parseCount(card.Interact.CollectedCount),
			CommentCount: parseCount(card.Interact.CommentCount),
			ShareCount:   parseCount(card.Interact.ShareCount),
		},
		Desc:           card.Desc,
		TokenRefreshed: refreshed,
	}

	if card.TimeMilli > 0 {
		t := time.UnixMilli(card.TimeMilli)
		detail.PublishTime = &t
	}
	for _, img := range card.ImageList {
		if img.URLDefault != "" {
			detail.MediaURLs = append(detail.MediaURLs, img.URLDefault)
		}
	}
	for _, v := range card.Video.Media.Stream.H264 {
		if v.MasterURL != "" {
			detail.MediaURLs = append(detail.MediaURLs, v.MasterURL)
		}
	}
	if len(card.ImageList) > 0 {
		detail.CoverURL = card.ImageList[0].URLDefault
	}

	return detail, nil
}

// FetchMedia downloads one media asset. Media URLs are absolute and served
// from a CDN, so the envelope handling does not apply.
func (c *HTTPClient) FetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindTransient, Op: "fetch_media", Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: "fetch_media", Message: err.Error()}
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest("fetch_media", "transport_error", time.Since(start))
		return nil, &Error{Kind: KindTransient, Op: "fetch_media", Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordRemoteRequest("fetch_media", "error", time.Since(start))
		return nil, classifyStatus("fetch_media", resp.StatusCode, 0, "media fetch failed")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordRemoteRequest("fetch_media", "transport_error", time.Since(start))
		return nil, &Error{Kind: KindTransient, Op: "fetch_media", Message: err.Error()}
	}

	metrics.RecordRemoteRequest("fetch_media", "success", time.Since(start))
	return body, nil
}

// getJSON performs a GET against an envelope endpoint, decodes data into out
// and reports whether the search token was refreshed along the way.
func (c *HTTPClient) getJSON(ctx context.Context, op, path string, q url.Values, out interface{}) (bool, error) {
	env, err := c.do(ctx, op, path, q)
	if err == nil {
		return false, json.Unmarshal(env.Data, out)
	}

	// One silent retry after a token refresh; any other failure propagates.
	if !isTokenExpired(err) {
		return false, err
	}
	if refreshErr := c.refreshToken(ctx); refreshErr != nil {
		return false, err
	}

	env, err = c.do(ctx, op, path, q)
	if err != nil {
		return true, err
	}
	return true, json.Unmarshal(env.Data, out)
}

// do performs one paced request and maps the envelope to a typed error when
// the platform reports failure.
func (c *HTTPClient) do(ctx context.Context, op, path string, q url.Values) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindTransient, Op: op, Message: err.Error()}
	}

	// Attach the current search token so retries after a refresh pick up the
	// new value automatically.
	c.tokenMu.Lock()
	if c.searchToken != "" && op != "refresh_token" {
		q = cloneValues(q)
		q.Set("xsec_token", c.searchToken)
	}
	c.tokenMu.Unlock()

	reqURL := c.baseURL + path
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: op, Message: err.Error()}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if c.cookie != nil {
		cookie, err := c.cookie(ctx)
		if err != nil {
			return nil, &Error{Kind: KindUnauthorized, Op: op, Message: fmt.Sprintf("no usable credential: %v", err)}
		}
		req.Header.Set("Cookie", cookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest(op, "transport_error", time.Since(start))
		return nil, &Error{Kind: KindTransient, Op: op, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordRemoteRequest(op, "error", time.Since(start))
		return nil, classifyStatus(op, resp.StatusCode, 0, "request rejected")
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		metrics.RecordRemoteRequest(op, "decode_error", time.Since(start))
		return nil, &Error{Kind: KindTransient, Op: op, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}

	if !env.Success {
		metrics.RecordRemoteRequest(op, "api_error", time.Since(start))
		return nil, classifyEnvelope(op, env.Code, env.Msg)
	}

	metrics.RecordRemoteRequest(op, "success", time.Since(start))
	return &env, nil
}

// refreshToken re-fetches the cached search token by requesting the current
// user's own profile. The platform rotates this token independently of the
// session cookie.
func (c *HTTPClient) refreshToken(ctx context.Context) error {
	q := url.Values{"refresh": {"1"}}

	var data profileData
	env, err := c.do(ctx, "refresh_token", "/api/sns/web/v1/user/selfinfo", q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return &Error{Kind: KindTransient, Op: "refresh_token", Message: err.Error()}
	}
	if data.Token == "" {
		return &Error{Kind: KindUnauthorized, Op: "refresh_token", Message: "no token in refresh response"}
	}

	c.tokenMu.Lock()
	c.searchToken = data.Token
	c.tokenMu.Unlock()

	metrics.RemoteTokenRefreshes.Inc()
	logging.Debug().Msg("refreshed platform search token")
	return nil
}

// apiCodeUnauthorized is the platform's "credential invalid" envelope code.
const apiCodeUnauthorized = 10062

// apiCodeTokenExpired signals the search token (not the session) lapsed.
const apiCodeTokenExpired = 461

// rateLimitPhrases are the platform's throttling messages. The envelope code
// is not stable across endpoints, the message wording is.
var rateLimitPhrases = []string{"频次异常", "频繁操作", "too many requests"}

// authPhrases indicate a rejected session credential.
var authPhrases = []string{"未登录", "登录已过期", "需要登录", "凭据不合法", "凭据无效", "unauthorized"}

// classifyEnvelope maps a failed envelope to a typed error.
func classifyEnvelope(op string, code int, msg string) *Error {
	lower := strings.ToLower(msg)

	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return &Error{Kind: KindRateLimited, Op: op, APICode: code, Message: msg}
		}
	}
	if code == apiCodeUnauthorized {
		return &Error{Kind: KindUnauthorized, Op: op, APICode: code, Message: msg}
	}
	for _, phrase := range authPhrases {
		if strings.Contains(lower, phrase) {
			return &Error{Kind: KindUnauthorized, Op: op, APICode: code, Message: msg}
		}
	}
	if code == apiCodeTokenExpired {
		return &Error{Kind: KindTransient, Op: op, APICode: code, Message: msg}
	}
	return &Error{Kind: KindTransient, Op: op, APICode: code, Message: msg}
}

// classifyStatus maps an HTTP status to a typed error.
func classifyStatus(op string, status, code int, msg string) *Error {
	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Op: op, StatusCode: status, APICode: code, Message: msg}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: KindUnauthorized, Op: op, StatusCode: status, APICode: code, Message: msg}
	case status == http.StatusNotFound || status == http.StatusGone:
		return &Error{Kind: KindUnavailable, Op: op, StatusCode: status, APICode: code, Message: msg}
	default:
		return &Error{Kind: KindTransient, Op: op, StatusCode: status, APICode: code, Message: msg}
	}
}

// isTokenExpired reports whether an error is the search-token-expired case
// that warrants a silent refresh and retry.
func isTokenExpired(err error) bool {
	var re *Error
	if !errors.As(err, &re) {
		return false
	}
	return re.APICode == apiCodeTokenExpired
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q)+1)
	for k, v := range q {
		out[k] = v
	}
	return out
}

// parseCount converts the platform's abbreviated counter strings to ints.
// "1208" -> 1208, "1.2万" -> 12000, "3万+" -> 30000, "" -> 0.
func parseCount(s string) int {
	s = strings.TrimSpace(strings.TrimSuffix(s, "+"))
	if s == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "万"):
		s = strings.TrimSuffix(s, "万")
		multiplier = 10000
	case strings.HasSuffix(s, "亿"):
		s = strings.TrimSuffix(s, "亿")
		multiplier = 100000000
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f * multiplier)
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Hemasri-01/pastebin/cfg"
	"github.com/Hemasri-01/pastebin/pkg/clock"
	"github.com/Hemasri-01/pastebin/svc/cache"
	"github.com/Hemasri-01/pastebin/svc/db"
	"github.com/Hemasri-01/pastebin/svc/lim"
	"github.com/Hemasri-01/pastebin/svc/svc"
)

func testCfg() *cfg.Cfg {
	return &cfg.Cfg{
		Port:            "0",
		Environment:     "development",
		LogLevel:        "error",
		LRUCacheSize:    100,
		RateLimit:       cfg.RateLimitCfg{RPM: 100000, Burst: 100000},
		MaxPasteSize:    64 * 1024,
		IDLength:        11,
		ClockOverride:   true,
		ContextTimeout:  5 * time.Second,
		CleanupInterval: 10 * time.Minute,
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	c := testCfg()
	path := filepath.Join(t.TempDir(), "pastes.db")
	sqlDB, err := db.NewSQLiteWithConfig(path, 10, 5, 5*time.Second)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	lru, err := cache.NewLRU(c.LRUCacheSize)
	if err != nil {
		t.Fatalf("new lru: %v", err)
	}
	wall := clock.Wall{}
	p := svc.NewPaste(sqlDB, lru, nil, wall, c)
	limiter := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, nil, c.TrustedProxies)
	srv := NewServer(c, p, limiter, sqlDB, nil, wall)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

type createResult struct {
	ID        string  `json:"id"`
	URL       string  `json:"url"`
	ExpiresAt *string `json:"expires_at"`
}

type viewResult struct {
	Content        string  `json:"content"`
	RemainingViews *int64  `json:"remaining_views"`
	ExpiresAt      *string `json:"expires_at"`
}

type errResult struct {
	Error struct {
		Code  string `json:"code"`
		Msg   string `json:"message"`
		Field string `json:"field,omitempty"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func postPaste(t *testing.T, ts *httptest.Server, body string, nowMS int64) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/pastes", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if nowMS >= 0 {
		req.Header.Set(testNowHeader, strconv.FormatInt(nowMS, 10))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func getPaste(t *testing.T, ts *httptest.Server, path string, nowMS int64) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if nowMS >= 0 {
		req.Header.Set(testNowHeader, strconv.FormatInt(nowMS, 10))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestCreatePasteReturnsIDAndURL(t *testing.T) {
	ts := newTestServer(t)
	resp := postPaste(t, ts, `{"content":"hello world"}`, -1)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: got %d, want 201", resp.StatusCode)
	}
	var created createResult
	decode(t, resp, &created)
	if len(created.ID) != 11 {
		t.Errorf("id length: got %d", len(created.ID))
	}
	if !strings.HasSuffix(created.URL, "/api/pastes/"+created.ID) {
		t.Errorf("retrieval url: got %s", created.URL)
	}
	if created.ExpiresAt != nil {
		t.Errorf("no-ttl paste got expiry: %v", *created.ExpiresAt)
	}
}

func TestCreatePasteValidationNamesField(t *testing.T) {
	ts := newTestServer(t)
	cases := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"empty content", `{"content":""}`, "CONTENT_REQUIRED", "content"},
		{"zero ttl", `{"content":"x","ttl_seconds":0}`, "INVALID_TTL", "ttl_seconds"},
		{"zero max views", `{"content":"x","max_views":0}`, "INVALID_MAX_VIEWS", "max_views"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postPaste(t, ts, tc.body, -1)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", resp.StatusCode)
			}
			var body errResult
			decode(t, resp, &body)
			if body.Error.Code != tc.code {
				t.Errorf("code: got %s, want %s", body.Error.Code, tc.code)
			}
			if body.Error.Field != tc.field {
				t.Errorf("field: got %s, want %s", body.Error.Field, tc.field)
			}
			if body.RequestID == "" {
				t.Error("missing request_id")
			}
		})
	}
}

func TestCreatePasteRejectsWrongContentType(t *testing.T) {
	ts := newTestServer(t)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/pastes", bytes.NewBufferString("content=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status: got %d, want 415", resp.StatusCode)
	}
}

func TestCreatePasteRejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t)
	resp := postPaste(t, ts, `{"content":"x","bogus":true}`, -1)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestConsumeUnknownIDIs404(t *testing.T) {
	ts := newTestServer(t)
	resp := getPaste(t, ts, "/api/pastes/doesnotexist", -1)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", resp.StatusCode)
	}
	var body errResult
	decode(t, resp, &body)
	if body.Error.Code != "PASTE_NOT_FOUND" {
		t.Errorf("code: got %s", body.Error.Code)
	}
}

func TestConsumeFlowWithClockOverride(t *testing.T) {
	ts := newTestServer(t)

	resp := postPaste(t, ts, `{"content":"hello","ttl_seconds":60,"max_views":2}`, 1000)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: got %d", resp.StatusCode)
	}
	var created createResult
	decode(t, resp, &created)
	if created.ExpiresAt == nil {
		t.Fatal("ttl paste missing expires_at")
	}
	exp, err := time.Parse(time.RFC3339Nano, *created.ExpiresAt)
	if err != nil {
		t.Fatalf("parse expires_at: %v", err)
	}
	if exp.UnixMilli() != 61000 {
		t.Errorf("expires_at: got %d ms, want 61000", exp.UnixMilli())
	}

	resp = getPaste(t, ts, "/api/pastes/"+created.ID, 30000)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first consume status: got %d", resp.StatusCode)
	}
	var v viewResult
	decode(t, resp, &v)
	if v.Content != "hello" {
		t.Errorf("content: got %q", v.Content)
	}
	if v.RemainingViews == nil || *v.RemainingViews != 1 {
		t.Errorf("remaining_views after first consume: got %v", v.RemainingViews)
	}

	resp = getPaste(t, ts, "/api/pastes/"+created.ID, 40000)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second consume status: got %d", resp.StatusCode)
	}
	decode(t, resp, &v)
	if v.RemainingViews == nil || *v.RemainingViews != 0 {
		t.Errorf("remaining_views after second consume: got %v", v.RemainingViews)
	}

	resp = getPaste(t, ts, "/api/pastes/"+created.ID, 50000)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("exhausted consume status: got %d, want 404", resp.StatusCode)
	}
}

func TestConsumeAtExpiryIs404(t *testing.T) {
	ts := newTestServer(t)
	resp := postPaste(t, ts, `{"content":"timed","ttl_seconds":60}`, 1000)
	var created createResult
	decode(t, resp, &created)

	resp = getPaste(t, ts, "/api/pastes/"+created.ID, 60999)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("just before expiry: got %d", resp.StatusCode)
	}
	resp = getPaste(t, ts, "/api/pastes/"+created.ID, 61000)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("at expiry: got %d, want 404", resp.StatusCode)
	}
}

func TestPeekDoesNotSpendViews(t *testing.T) {
	ts := newTestServer(t)
	resp := postPaste(t, ts, `{"content":"guarded","max_views":1}`, 1000)
	var created createResult
	decode(t, resp, &created)

	for i := 0; i < 5; i++ {
		resp = getPaste(t, ts, "/api/pastes/"+created.ID+"/peek", 2000)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("peek %d status: got %d", i, resp.StatusCode)
		}
		var v viewResult
		decode(t, resp, &v)
		if v.RemainingViews == nil || *v.RemainingViews != 1 {
			t.Errorf("peek %d reported views %v", i, v.RemainingViews)
		}
	}

	resp = getPaste(t, ts, "/api/pastes/"+created.ID, 3000)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("consume after peeks: got %d", resp.StatusCode)
	}
	resp = getPaste(t, ts, "/api/pastes/"+created.ID, 4000)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second consume: got %d, want 404", resp.StatusCode)
	}
}

func TestMissingExpiredExhaustedLookAlike(t *testing.T) {
	ts := newTestServer(t)

	resp := postPaste(t, ts, `{"content":"a","ttl_seconds":1}`, 0)
	var expired createResult
	decode(t, resp, &expired)

	resp = postPaste(t, ts, `{"content":"b","max_views":1}`, 0)
	var exhausted createResult
	decode(t, resp, &exhausted)
	resp = getPaste(t, ts, "/api/pastes/"+exhausted.ID, 0)
	resp.Body.Close()

	var bodies []errResult
	for _, id := range []string{"neverexisted", expired.ID, exhausted.ID} {
		resp = getPaste(t, ts, "/api/pastes/"+id, 5000)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: got %d, want 404", id, resp.StatusCode)
		}
		var body errResult
		decode(t, resp, &body)
		bodies = append(bodies, body)
	}
	for i := 1; i < len(bodies); i++ {
		if bodies[i].Error != bodies[0].Error {
			t.Errorf("unavailable responses differ: %+v vs %+v", bodies[0].Error, bodies[i].Error)
		}
	}
}

func TestClockOverrideIgnoredWhenDisabled(t *testing.T) {
	c := testCfg()
	c.ClockOverride = false
	path := filepath.Join(t.TempDir(), "pastes.db")
	sqlDB, err := db.NewSQLiteWithConfig(path, 10, 5, 5*time.Second)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	lru, _ := cache.NewLRU(c.LRUCacheSize)
	wall := clock.Wall{}
	p := svc.NewPaste(sqlDB, lru, nil, wall, c)
	limiter := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, nil, c.TrustedProxies)
	ts := httptest.NewServer(NewServer(c, p, limiter, sqlDB, nil, wall))
	t.Cleanup(ts.Close)

	// TTL relative to instant 1000 would have expired decades ago; with
	// the override ignored the paste hangs off the real wall clock and is
	// still retrievable.
	resp := postPaste(t, ts, `{"content":"real time","ttl_seconds":60}`, 1000)
	var created createResult
	decode(t, resp, &created)
	resp = getPaste(t, ts, "/api/pastes/"+created.ID, 70000)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("override should be inert when disabled: got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status: got %d", resp.StatusCode)
	}
}

func TestRateLimitHeadersPresent(t *testing.T) {
	ts := newTestServer(t)
	resp := postPaste(t, ts, `{"content":"x"}`, -1)
	defer resp.Body.Close()
	if resp.Header.Get("X-RateLimit-Limit") == "" {
		t.Error("missing X-RateLimit-Limit header")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

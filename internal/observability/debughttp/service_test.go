package debughttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"signedkb/internal/storage"
	logx "signedkb/pkg/logx"
)

type fakeAudit struct {
	entries []storage.AuditEntry
	limit   int
}

func (f *fakeAudit) RecentAudit(ctx context.Context, limit int) ([]storage.AuditEntry, error) {
	f.limit = limit
	return f.entries, nil
}

func TestCallbacksEndpoint(t *testing.T) {
	audit := &fakeAudit{entries: []storage.AuditEntry{
		{At: time.Unix(10, 0), UpdateID: 2, ChatID: 5, Outcome: storage.OutcomeTampered, Reason: "bad signature"},
		{At: time.Unix(9, 0), UpdateID: 1, ChatID: 5, Outcome: storage.OutcomeHandled, Hook: "echo:upper"},
	}}
	h := New(Config{}, audit, logx.Nop()).Handler("")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/callbacks?limit=1000", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if audit.limit != 500 {
		t.Fatalf("limit = %d, want capped 500", audit.limit)
	}
	var got []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0]["outcome"] != "tampered" || got[1]["hook"] != "echo:upper" {
		t.Fatalf("body = %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/callbacks?limit=x", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", rr.Code)
	}
}

func TestCallbacksWithoutAudit(t *testing.T) {
	h := New(Config{}, nil, logx.Nop()).Handler("")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/callbacks", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestTokenAuth(t *testing.T) {
	h := New(Config{}, nil, logx.Nop()).Handler("s3cret")
	cases := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"none", "/healthz", "", http.StatusUnauthorized},
		{"wrong", "/healthz?token=nope", "", http.StatusUnauthorized},
		{"prefix", "/healthz?token=s3cre", "", http.StatusUnauthorized},
		{"longer", "/healthz?token=s3cret2", "", http.StatusUnauthorized},
		{"bad scheme", "/healthz", "Basic s3cret", http.StatusUnauthorized},
		{"query", "/healthz?token=s3cret", "", http.StatusOK},
		{"bearer", "/healthz", "Bearer s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:1":    true,
		"[::1]:80":       true,
		":6060":          false,
		"0.0.0.0:6060":   false,
		"nonsense":       false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Errorf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}

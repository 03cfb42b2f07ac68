// SPDX-License-Identifier: GPL-3.0-or-later

package quicecho

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTruncateField(t *testing.T) {
	if got := truncateField("short", 16); got != "short" {
		t.Errorf("unexpected truncation of short string: %q", got)
	}
	if got := truncateField("this is definitely longer than ten", 10); got != "this is de" {
		t.Errorf("unexpected truncation: %q", got)
	}
	if got := truncateField("", 10); got != "" {
		t.Errorf("expected empty string unchanged, got %q", got)
	}
}

// TestH3HandlerDispatch exercises the request dispatch table for the
// branches that do not take over the underlying stream: the two known GET
// paths answer 200 text/plain, unknown GETs answer 404, and anything else
// answers 405.
func TestH3HandlerDispatch(t *testing.T) {
	cases := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"root", http.MethodGet, "/", http.StatusOK},
		{"well-known", http.MethodGet, "/.well-known/webtransport", http.StatusOK},
		{"missing", http.MethodGet, "/missing", http.StatusNotFound},
		{"post", http.MethodPost, "/", http.StatusMethodNotAllowed},
		{"plain-connect", http.MethodConnect, "/", http.StatusMethodNotAllowed},
	}

	c := newTestConnection()
	handler := c.h3Handler()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "https://example.net"+tc.path, nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("%s %s: status = %d, want %d", tc.method, tc.path, rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK {
				if ct := rec.Header().Get("content-type"); ct != "text/plain" {
					t.Errorf("content-type = %q, want text/plain", ct)
				}
				if rec.Body.Len() != 0 {
					t.Errorf("expected an empty body, got %d bytes", rec.Body.Len())
				}
			}
		})
	}
}

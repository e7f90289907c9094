package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDPropagatesValidHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if seen != "abc-123" || res.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("request id = %q / %q", seen, res.Header().Get("X-Request-ID"))
	}
}

func TestRequestIDReplacesUnusableHeader(t *testing.T) {
	for _, rid := range []string{"", "has space", strings.Repeat("x", maxRequestIDLen+1)} {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestIDFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if rid != "" {
			req.Header.Set("X-Request-ID", rid)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == "" || seen == rid {
			t.Fatalf("header %q should be replaced, got %q", rid, seen)
		}
	}
}

func TestCORSAnswersPreflightForAllowedOrigin(t *testing.T) {
	called := false
	h := CORS([]string{"https://closet.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/cutouts", nil)
	req.Header.Set("Origin", "https://closet.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent || called {
		t.Fatalf("preflight status = %d, handler called = %v", res.Code, called)
	}
	if res.Header().Get("Access-Control-Allow-Origin") != "https://closet.example" {
		t.Fatalf("missing allow-origin header")
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Header().Get("Access-Control-Allow-Origin") != "" || !called {
		t.Fatalf("unlisted origin must not be allowed")
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newProtectedHandler(key string) http.Handler {
	m := NewMiddleware(key)
	return m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestAPIKeyHeader(t *testing.T) {
	h := newProtectedHandler("secret")

	req := httptest.NewRequest(http.MethodGet, "/api/admins/members", nil)
	req.Header.Set(HeaderName, "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestBearerFallback(t *testing.T) {
	h := newProtectedHandler("secret")

	req := httptest.NewRequest(http.MethodGet, "/api/admins/members", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestEmptyConfiguredKeyRefusesAll(t *testing.T) {
	h := newProtectedHandler("")

	for name, setup := range map[string]func(*http.Request){
		"no key sent":  func(r *http.Request) {},
		"empty header": func(r *http.Request) { r.Header.Set(HeaderName, "") },
		"any key sent": func(r *http.Request) { r.Header.Set(HeaderName, "anything") },
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admins/members", nil)
			setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
			}
		})
	}
}

func TestRejectsBadOrMissingKey(t *testing.T) {
	h := newProtectedHandler("secret")

	for name, setup := range map[string]func(*http.Request){
		"missing key": func(r *http.Request) {},
		"wrong key":   func(r *http.Request) { r.Header.Set(HeaderName, "guess") },
		"wrong bearer": func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer guess")
		},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admins/members", nil)
			setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

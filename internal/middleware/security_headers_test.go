package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveWithHeaders(env string, req *http.Request) *httptest.ResponseRecorder {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: env})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_Always(t *testing.T) {
	w := serveWithHeaders("development", httptest.NewRequest("POST", "/auth/login", nil))

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "no-referrer"},
		{"Cache-Control", "no-store"},
		{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	}

	for _, tt := range tests {
		if got := w.Header().Get(tt.header); got != tt.expected {
			t.Errorf("Header %s: got %q, want %q", tt.header, got, tt.expected)
		}
	}

	if hsts := w.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("HSTS should not be set in development, got %q", hsts)
	}
}

func TestSecurityHeaders_HSTSInProductionOverTLS(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.Header.Set("X-Forwarded-Proto", "https")

	w := serveWithHeaders("production", req)

	if hsts := w.Header().Get("Strict-Transport-Security"); hsts == "" {
		t.Error("Strict-Transport-Security header missing in production over https")
	}
}

func TestSecurityHeaders_NoHSTSOverPlainHTTP(t *testing.T) {
	w := serveWithHeaders("production", httptest.NewRequest("POST", "/auth/login", nil))

	if hsts := w.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("HSTS should not be set over plain http, got %q", hsts)
	}
}

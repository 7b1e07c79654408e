package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/shopguard/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestRequireStaticToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"valid token", "s3cret-admin", "Bearer s3cret-admin", http.StatusTeapot},
		{"scheme is case-insensitive", "s3cret-admin", "bearer s3cret-admin", http.StatusTeapot},
		{"wrong token", "s3cret-admin", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "s3cret-admin", "", http.StatusUnauthorized},
		{"basic scheme", "s3cret-admin", "Basic s3cret-admin", http.StatusUnauthorized},
		{"empty bearer", "s3cret-admin", "Bearer   ", http.StatusUnauthorized},
		{"disabled when unconfigured", "", "Bearer anything", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/lockouts/a@x.com", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			auth.RequireStaticToken(tt.configured)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc.def")

	token, ok := auth.BearerToken(req)
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	req.Header.Set("Authorization", "Token abc")
	_, ok = auth.BearerToken(req)
	assert.False(t, ok)
}

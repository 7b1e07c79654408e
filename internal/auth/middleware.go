package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	pkghttp "github.com/BradenHooton/shopguard/pkg/http"
)

// RequireStaticToken guards operator endpoints with a shared bearer token.
// An empty token disables the endpoints entirely.
func RequireStaticToken(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				pkghttp.WriteForbidden(w, "admin endpoints are disabled")
				return
			}

			presented, ok := BearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				pkghttp.WriteUnauthorized(w, "invalid admin token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

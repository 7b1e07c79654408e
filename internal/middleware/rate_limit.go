package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/shopguard/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds per-IP rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// DefaultLoginRateLimit returns the default per-IP limit for the login endpoint
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
	}
}

// RateLimitByIP limits requests per client IP. It sits in front of the
// per-identity guard and slows down spraying across many accounts.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequestsRetryAfter(w, "Too many requests from this address", time.Minute)
		}),
	)
}

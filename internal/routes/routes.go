package routes

import (
	"github.com/BradenHooton/shopguard/internal/auth"
	"github.com/BradenHooton/shopguard/internal/handlers"
	"github.com/BradenHooton/shopguard/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Config holds the route-level settings that vary per deployment
type Config struct {
	LoginRateLimit middleware.RateLimitConfig
	AdminAPIToken  string
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	lockoutHandler *handlers.LockoutHandler,
	healthHandler *handlers.HealthHandler,
	cfg Config,
) {
	router.Get("/health", healthHandler.Health)

	// Per-IP limiting sits in front of the per-identity guard
	router.With(middleware.RateLimitByIP(cfg.LoginRateLimit)).Post("/auth/login", authHandler.Login)

	// Operator routes
	router.Route("/admin/lockouts", func(r chi.Router) {
		r.Use(auth.RequireStaticToken(cfg.AdminAPIToken))
		r.Get("/{email}", lockoutHandler.Get)
		r.Delete("/{email}", lockoutHandler.Delete)
	})
}

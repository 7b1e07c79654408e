package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/shopguard/internal/auth"
	"github.com/BradenHooton/shopguard/internal/cache"
	"github.com/BradenHooton/shopguard/internal/clock"
	"github.com/BradenHooton/shopguard/internal/config"
	"github.com/BradenHooton/shopguard/internal/database"
	"github.com/BradenHooton/shopguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/shopguard/internal/middleware"
	"github.com/BradenHooton/shopguard/internal/models"
	"github.com/BradenHooton/shopguard/internal/repositories"
	"github.com/BradenHooton/shopguard/internal/routes"
	"github.com/BradenHooton/shopguard/internal/services"
	pkgauth "github.com/BradenHooton/shopguard/pkg/auth"
	pkghttp "github.com/BradenHooton/shopguard/pkg/http"
	pkglogger "github.com/BradenHooton/shopguard/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// userStore is what the login flow and seeding need from a user repository
type userStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	level.Set(parseLogLevel(cfg.Server.LogLevel))

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("guard_store", cfg.Guard.Store))

	ctx := context.Background()
	clk := clock.SystemClock{}

	// Postgres holds users and, with GUARD_STORE=postgres, guard state
	var db *database.DB
	if cfg.UsesPostgres() {
		db, err = database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		if err := database.MigratePostgres(ctx, db, logger); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	store, closeStore, err := openGuardStore(ctx, cfg, db, clk, logger)
	if err != nil {
		logger.Error("failed to open guard store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	policy := services.LockoutPolicy{
		Threshold:     cfg.Guard.FailureThreshold,
		BlockDuration: cfg.Guard.BlockDuration,
		AttemptsTTL:   cfg.Guard.AttemptsTTL,
	}
	if err := policy.Validate(); err != nil {
		logger.Error("invalid lockout policy", slog.Any("error", err))
		os.Exit(1)
	}
	guard := services.NewAbuseGuard(store, policy, clk, logger)

	var users userStore
	if db != nil {
		users = repositories.NewUserRepository(db)
	} else {
		logger.Warn("no database configured, using in-memory user store")
		users = repositories.NewMemoryUserRepository()
	}

	seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ensureSeedUser(seedCtx, users, cfg.Auth.SeedUserEmail, cfg.Auth.SeedUserPassword, logger); err != nil {
		logger.Error("failed to ensure seed user", slog.Any("error", err))
	}
	cancel()

	var notifier services.LockoutNotifier = services.NoopLockoutNotifier{}
	if cfg.Email.LockoutNotifyEnabled {
		sesNotifier, err := services.NewSESLockoutNotifier(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize lockout notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Auth.RefreshTokenExpiry, clk)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.TimingBaseDelay,
		RandomDelay: cfg.Auth.TimingRandomDelay,
	})
	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := pkghttp.NewIPConfig(cfg.Auth.TrustedProxies)

	authService := services.NewAuthService(users, tokenManager, guard, notifier, timingDelay, logger, auditLogger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(router,
		handlers.NewAuthHandler(authService, ipConfig),
		handlers.NewLockoutHandler(guard, auditLogger, ipConfig),
		handlers.NewHealthHandler(store, cfg.Guard.Store),
		routes.Config{
			LoginRateLimit: middlewareCustom.RateLimitConfig{
				RequestsPerMinute: cfg.Auth.IPRequestsPerMin,
				IPConfig:          ipConfig,
			},
			AdminAPIToken: cfg.Auth.AdminAPIToken,
		},
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

// openGuardStore builds the backend selected by GUARD_STORE
func openGuardStore(ctx context.Context, cfg *config.Config, db *database.DB, clk clock.Clock, logger *slog.Logger) (cache.Store, func(), error) {
	noop := func() {}

	switch cfg.Guard.Store {
	case config.StorePostgres:
		return cache.NewPostgresStore(db, clk), noop, nil

	case config.StoreSQLite:
		sqlDB, err := database.OpenSQLite(cfg.Guard.SQLitePath, logger)
		if err != nil {
			return nil, noop, err
		}
		if err := database.MigrateSQLite(ctx, sqlDB, logger); err != nil {
			sqlDB.Close()
			return nil, noop, err
		}
		return cache.NewSQLiteStore(sqlDB, clk), closeSQLite(sqlDB, logger), nil

	default:
		logger.Warn("guard state is in-process and will not survive restarts")
		return cache.NewMemoryStore(clk), noop, nil
	}
}

func closeSQLite(db *sql.DB, logger *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close sqlite database", slog.Any("error", err))
		}
	}
}

// ensureSeedUser creates a login account if SEED_USER_EMAIL and SEED_USER_PASSWORD are set
func ensureSeedUser(ctx context.Context, users userStore, email, password string, logger *slog.Logger) error {
	email = services.NormalizeIdentity(email)
	if email == "" || password == "" {
		return nil
	}

	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		logger.Info("seed user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if seed user exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash seed user password: %w", err)
	}

	if _, err := users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         "Seed User",
	}); err != nil {
		return fmt.Errorf("failed to create seed user: %w", err)
	}

	logger.Info("seed user created", slog.String("email", pkglogger.SanitizedEmail(email)))
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

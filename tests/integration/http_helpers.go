package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/BradenHooton/shopguard/internal/auth"
	"github.com/BradenHooton/shopguard/internal/cache"
	"github.com/BradenHooton/shopguard/internal/clock"
	"github.com/BradenHooton/shopguard/internal/database"
	"github.com/BradenHooton/shopguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/shopguard/internal/middleware"
	"github.com/BradenHooton/shopguard/internal/repositories"
	"github.com/BradenHooton/shopguard/internal/routes"
	"github.com/BradenHooton/shopguard/internal/services"
	pkghttp "github.com/BradenHooton/shopguard/pkg/http"
	pkglogger "github.com/BradenHooton/shopguard/pkg/logger"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// LockoutNotice is a captured lockout notification
type LockoutNotice struct {
	Email        string
	BlockedUntil time.Time
}

// CapturingNotifier records lockout notifications for assertions
type CapturingNotifier struct {
	mu      sync.Mutex
	notices []LockoutNotice
}

func (n *CapturingNotifier) NotifyLockout(ctx context.Context, email string, blockedUntil time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, LockoutNotice{Email: email, BlockedUntil: blockedUntil})
	return nil
}

// Notices returns a copy of everything sent so far
func (n *CapturingNotifier) Notices() []LockoutNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]LockoutNotice(nil), n.notices...)
}

// TestServer wires the full login stack against Postgres with a fake clock
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Clock    *clock.Fake
	Guard    *services.AbuseGuard
	Notifier *CapturingNotifier
}

// NewTestServer builds the router the way cmd/api does, minus timing padding
func NewTestServer(db *database.DB, policy services.LockoutPolicy) *TestServer {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	clk := clock.NewFake(Epoch)

	store := cache.NewPostgresStore(db, clk)
	guard := services.NewAbuseGuard(store, policy, clk, logger)
	notifier := &CapturingNotifier{}

	tokenManager := auth.NewTokenManager("test-secret-32-characters-long-for-testing", 15*time.Minute, 24*time.Hour, clk)
	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := pkghttp.NewIPConfig(nil)

	authService := services.NewAuthService(
		repositories.NewUserRepository(db),
		tokenManager,
		guard,
		notifier,
		nil,
		logger,
		auditLogger,
	)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(r,
		handlers.NewAuthHandler(authService, ipConfig),
		handlers.NewLockoutHandler(guard, auditLogger, ipConfig),
		handlers.NewHealthHandler(store, "postgres"),
		routes.Config{
			LoginRateLimit: middlewareCustom.RateLimitConfig{RequestsPerMinute: 1000, IPConfig: ipConfig},
			AdminAPIToken:  AdminToken,
		},
	)

	return &TestServer{
		Server:   httptest.NewServer(r),
		DB:       db,
		Clock:    clk,
		Guard:    guard,
		Notifier: notifier,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// Login posts credentials to /auth/login
func (ts *TestServer) Login(email, password string) (*http.Response, error) {
	return ts.Request(http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
}

// AdminRequest calls an /admin route with the static token
func (ts *TestServer) AdminRequest(method, path string) (*http.Response, error) {
	return ts.Request(method, path, nil, map[string]string{
		"Authorization": "Bearer " + AdminToken,
	})
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// GetErrorResponse decodes the standard error body
func GetErrorResponse(resp *http.Response) (pkghttp.ErrorResponse, error) {
	var errResp pkghttp.ErrorResponse
	err := ParseJSONResponse(resp, &errResp)
	return errResp, err
}

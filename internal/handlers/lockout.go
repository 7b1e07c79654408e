package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/BradenHooton/shopguard/internal/models"
	"github.com/BradenHooton/shopguard/internal/services"
	pkghttp "github.com/BradenHooton/shopguard/pkg/http"
	pkglogger "github.com/BradenHooton/shopguard/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// LockoutGuard is the part of the abuse guard exposed to operators
type LockoutGuard interface {
	Status(ctx context.Context, identity string) models.LockoutStatus
	Reset(ctx context.Context, identity string)
}

// LockoutHandler lets operators inspect and clear login lockouts
type LockoutHandler struct {
	guard       LockoutGuard
	auditLogger *pkglogger.AuditLogger
	ipConfig    *pkghttp.IPConfig
}

// NewLockoutHandler creates a new LockoutHandler
func NewLockoutHandler(guard LockoutGuard, auditLogger *pkglogger.AuditLogger, ipConfig *pkghttp.IPConfig) *LockoutHandler {
	return &LockoutHandler{
		guard:       guard,
		auditLogger: auditLogger,
		ipConfig:    ipConfig,
	}
}

// LockoutStatusResponse is the operator view of one identity
type LockoutStatusResponse struct {
	Email             string `json:"email"`
	FailedAttempts    int    `json:"failed_attempts"`
	Blocked           bool   `json:"blocked"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// Get returns the guard state for the identity in the URL
// @Router /admin/lockouts/{email} [get]
func (h *LockoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	email, ok := h.emailParam(w, r)
	if !ok {
		return
	}

	status := h.guard.Status(r.Context(), email)

	resp := LockoutStatusResponse{
		Email:          status.Identity,
		FailedAttempts: status.FailedAttempts,
		Blocked:        status.Blocked,
	}
	if status.Blocked {
		resp.RetryAfterSeconds = pkghttp.RetryAfterSeconds(status.Remaining)
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Delete clears the failure counter and any block for the identity
// @Router /admin/lockouts/{email} [delete]
func (h *LockoutHandler) Delete(w http.ResponseWriter, r *http.Request) {
	email, ok := h.emailParam(w, r)
	if !ok {
		return
	}

	h.guard.Reset(r.Context(), email)

	h.auditLogger.LogLockout(pkglogger.AuditEvent{
		EventType: "lockout_cleared",
		Identity:  email,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
		Success:   true,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (h *LockoutHandler) emailParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid email parameter")
		return "", false
	}

	email := services.NormalizeIdentity(raw)
	if err := ValidateVar(email, "required,email"); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return "", false
	}

	return email, true
}

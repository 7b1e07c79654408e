package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/BradenHooton/shopguard/internal/models"
	"github.com/BradenHooton/shopguard/internal/services"
	pkghttp "github.com/BradenHooton/shopguard/pkg/http"
)

const maxLoginBodyBytes = 1 << 16

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, meta services.LoginMetadata) (*services.AuthResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	meta := services.LoginMetadata{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}

	authResp, err := h.service.Login(r.Context(), req.Email, req.Password, meta)
	if err != nil {
		writeLoginError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, authResp)
}

func writeLoginError(w http.ResponseWriter, err error) {
	var lockedErr *services.AccountLockedError
	var credErr *services.CredentialsError

	switch {
	case errors.As(err, &lockedErr):
		pkghttp.WriteTooManyRequestsRetryAfter(w, "Too many failed login attempts. Please try again later.", lockedErr.RetryAfter)
	case errors.As(err, &credErr):
		details := ""
		if credErr.Counted {
			details = fmt.Sprintf("attempts_remaining=%d", credErr.AttemptsRemaining)
		}
		pkghttp.WriteErrorWithDetails(w, http.StatusUnauthorized, "unauthorized", "Authentication failed", details)
	case errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrAccountDisabled),
		errors.Is(err, models.ErrAccountSuspended):
		// Same answer for every account state to prevent enumeration
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

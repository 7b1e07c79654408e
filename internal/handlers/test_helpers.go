package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/shopguard/internal/models"
	"github.com/BradenHooton/shopguard/internal/services"
	pkghttp "github.com/BradenHooton/shopguard/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response and returns it
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc func(ctx context.Context, email, password string, meta services.LoginMetadata) (*services.AuthResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta services.LoginMetadata) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, meta)
	}
	return nil, models.ErrUnauthorized
}

// MockLockoutGuard implements LockoutGuard for testing
type MockLockoutGuard struct {
	StatusFunc func(ctx context.Context, identity string) models.LockoutStatus
	ResetFunc  func(ctx context.Context, identity string)
}

func (m *MockLockoutGuard) Status(ctx context.Context, identity string) models.LockoutStatus {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, identity)
	}
	return models.LockoutStatus{Identity: identity}
}

func (m *MockLockoutGuard) Reset(ctx context.Context, identity string) {
	if m.ResetFunc != nil {
		m.ResetFunc(ctx, identity)
	}
}

// MockPinger implements Pinger for testing
type MockPinger struct {
	Err error
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Err
}

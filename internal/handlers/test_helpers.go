package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/touchline/auth-service/internal/models"
	"github.com/touchline/auth-service/internal/services"
	pkghttp "github.com/touchline/auth-service/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
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
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLoginService implements LoginService for testing
type MockLoginService struct {
	LoginFunc func(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error)
}

func (m *MockLoginService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, ipAddress, userAgent)
}

// MockRegistrationService implements RegistrationService for testing
type MockRegistrationService struct {
	RegisterFunc    func(ctx context.Context, input services.RegisterInput, ipAddress, userAgent string) (*services.RegisterResponse, error)
	VerifyEmailFunc func(ctx context.Context, token string) error
}

func (m *MockRegistrationService) Register(ctx context.Context, input services.RegisterInput, ipAddress, userAgent string) (*services.RegisterResponse, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.RegisterFunc(ctx, input, ipAddress, userAgent)
}

func (m *MockRegistrationService) VerifyEmail(ctx context.Context, token string) error {
	if m.VerifyEmailFunc == nil {
		return models.ErrNotFound
	}
	return m.VerifyEmailFunc(ctx, token)
}

// MockTokenLifecycleService implements TokenLifecycleService for testing
type MockTokenLifecycleService struct {
	LogoutFunc  func(ctx context.Context, accessToken, ipAddress string) error
	RefreshFunc func(ctx context.Context, refreshToken, ipAddress, userAgent string) (*services.AuthResponse, error)
}

func (m *MockTokenLifecycleService) Logout(ctx context.Context, accessToken, ipAddress string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, accessToken, ipAddress)
}

func (m *MockTokenLifecycleService) Refresh(ctx context.Context, refreshToken, ipAddress, userAgent string) (*services.AuthResponse, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshFunc(ctx, refreshToken, ipAddress, userAgent)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/touchline/auth-service/internal/auth"
	"github.com/touchline/auth-service/internal/models"
	"github.com/touchline/auth-service/internal/services"
	pkghttp "github.com/touchline/auth-service/pkg/http"
)

// LoginService defines the credential-verification operations the handler needs
type LoginService interface {
	Login(ctx context.Context, email, password, ipAddress, userAgent string) (*services.AuthResponse, error)
}

// RegistrationService defines the account-creation operations the handler needs
type RegistrationService interface {
	Register(ctx context.Context, input services.RegisterInput, ipAddress, userAgent string) (*services.RegisterResponse, error)
	VerifyEmail(ctx context.Context, token string) error
}

// TokenLifecycleService defines logout and refresh operations
type TokenLifecycleService interface {
	Logout(ctx context.Context, accessToken, ipAddress string) error
	Refresh(ctx context.Context, refreshToken, ipAddress, userAgent string) (*services.AuthResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	login        LoginService
	registration RegistrationService
	tokens       TokenLifecycleService
	ipConfig     *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(login LoginService, registration RegistrationService, tokens TokenLifecycleService, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		login:        login,
		registration: registration,
		tokens:       tokens,
		ipConfig:     ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

// RefreshRequest represents the request body for token refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// VerifyEmailRequest represents the request body for email verification
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// MeResponse echoes the authenticated caller's identity and capabilities
type MeResponse struct {
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		pkghttp.WriteBadRequest(w, "Email and password are required")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	resp, err := h.login.Login(r.Context(), req.Email, req.Password, ipAddress, userAgent)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	input := services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     strings.TrimSpace(req.Name),
		Role:     req.Role,
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	resp, err := h.registration.Register(r.Context(), input, ipAddress, userAgent)
	if err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			pkghttp.WriteBadRequest(w, ve.Error())
		case errors.Is(err, models.ErrEmailTaken):
			pkghttp.WriteConflict(w, "Email is already registered")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid registration data")
		case errors.Is(err, models.ErrDependencyUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, resp)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		pkghttp.WriteBadRequest(w, "Refresh token is required")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	resp, err := h.tokens.Refresh(r.Context(), req.RefreshToken, ipAddress, userAgent)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Logout handles POST /auth/logout. The token to revoke comes from the
// Authorization header, same place the rest of the API reads it from.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	accessToken := bearerToken(r)
	if accessToken == "" {
		pkghttp.WriteUnauthorized(w, "Authorization header required")
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	if err := h.tokens.Logout(r.Context(), accessToken, ipAddress); err != nil {
		if errors.Is(err, models.ErrDependencyUnavailable) {
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// VerifyEmail handles POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.registration.VerifyEmail(r.Context(), req.Token); err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Verification token is required")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteBadRequest(w, "Verification token is invalid or expired")
		case errors.Is(err, models.ErrDependencyUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

// Me handles GET /auth/me. Runs behind the auth middleware, so claims are
// always present.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &MeResponse{
		UserID:      claims.Subject,
		Role:        claims.Role,
		Permissions: claims.Permissions,
	})
}

// writeAuthError maps service errors from login/refresh onto status codes.
// Credential, account-state, and token problems all collapse to 401 with a
// generic message so responses never confirm an account exists; the audit
// log carries the specific reason.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrTooManyAttempts):
		pkghttp.WriteTooManyRequests(w, "Too many failed login attempts. Please try again later.")
	case errors.Is(err, models.ErrAccountDisabled),
		errors.Is(err, models.ErrEmailNotVerified),
		errors.Is(err, models.ErrUnauthorized),
		errors.Is(err, models.ErrTokenMalformed),
		errors.Is(err, models.ErrTokenExpired),
		errors.Is(err, models.ErrTokenWrongType),
		errors.Is(err, models.ErrTokenRevoked):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrDependencyUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

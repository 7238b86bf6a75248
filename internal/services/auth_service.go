package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/touchline/auth-service/internal/auth"
	"github.com/touchline/auth-service/internal/models"
	pkgauth "github.com/touchline/auth-service/pkg/auth"
	pkglogger "github.com/touchline/auth-service/pkg/logger"
)

// UserRepository defines the credential-store operations the services need
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SetEmailVerified(ctx context.Context, id string) error
}

// SessionStore defines the session-state operations the services need
type SessionStore interface {
	SaveSession(ctx context.Context, record *models.SessionRecord, ttl time.Duration) error
	GetSession(ctx context.Context, userID string) (*models.SessionRecord, error)
	DeleteSession(ctx context.Context, userID string) error
	RevokeToken(ctx context.Context, jti string, remaining time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	SaveVerificationToken(ctx context.Context, token, userID string, ttl time.Duration) error
	ConsumeVerificationToken(ctx context.Context, token string) (string, error)
}

// UserResponse is the user summary returned by auth operations. It never
// carries the password hash.
type UserResponse struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions"`
	EmailVerified bool     `json:"email_verified"`
	CreatedAt     string   `json:"created_at"`
}

// AuthResponse represents the response from login, register, and refresh
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"` // access token TTL in seconds
	User         *UserResponse `json:"user"`
}

// taskSubmitter is satisfied by background.Runner; tests swap in a
// synchronous implementation.
type taskSubmitter interface {
	Submit(name string, fn func(ctx context.Context) error)
}

// AuthService orchestrates credential verification, lockout checks, token
// issuance, and session persistence
type AuthService struct {
	repo        UserRepository
	sessions    SessionStore
	tm          *auth.TokenManager
	guard       *LockoutService
	runner      taskSubmitter
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger

	requireVerifiedEmail bool
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo UserRepository,
	sessions SessionStore,
	tm *auth.TokenManager,
	guard *LockoutService,
	runner taskSubmitter,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	requireVerifiedEmail bool,
) *AuthService {
	return &AuthService{
		repo:                 repo,
		sessions:             sessions,
		tm:                   tm,
		guard:                guard,
		runner:               runner,
		logger:               logger,
		auditLogger:          auditLogger,
		requireVerifiedEmail: requireVerifiedEmail,
	}
}

// Login authenticates a user and returns a fresh token pair. Failures are
// generic to the caller ("invalid credentials") so the response never
// reveals whether the email exists; the specific reason goes to the audit
// log only.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*AuthResponse, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, models.ErrUnauthorized
	}

	identifier := Identifier(email, ipAddress)

	// Lockout is checked before the credential store or bcrypt are
	// touched, so a locked identifier costs neither a query nor a hash.
	if s.guard.IsLocked(ctx, identifier) {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			IPAddress:     ipAddress,
			FailureReason: "locked_out",
			Success:       false,
		})
		return nil, models.ErrTooManyAttempts
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.guard.RecordFailure(ctx, identifier)
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				IPAddress:     ipAddress,
				FailureReason: "unknown_email",
				Success:       false,
			})
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load user by email", slog.Any("error", err))
		return nil, fmt.Errorf("%w: credential store", models.ErrDependencyUnavailable)
	}

	// Account-state failures are not credential failures: they carry a
	// specific reason and do not feed the lockout counter.
	if !user.IsActive {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "account_disabled",
			Success:       false,
		})
		return nil, models.ErrAccountDisabled
	}
	if s.requireVerifiedEmail && !user.EmailVerified {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "email_not_verified",
			Success:       false,
		})
		return nil, models.ErrEmailNotVerified
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.guard.RecordFailure(ctx, identifier)
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "invalid_credentials",
			Success:       false,
		})
		return nil, models.ErrUnauthorized
	}

	s.guard.Reset(ctx, identifier)

	resp, err := s.issueSession(ctx, user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	// Last-login is best-effort and must never delay or fail the login.
	userID := user.ID
	loginAt := time.Now()
	s.runner.Submit("update_last_login", func(taskCtx context.Context) error {
		return s.repo.UpdateLastLogin(taskCtx, userID, loginAt)
	})

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return resp, nil
}

// issueSession mints a token pair and persists the session record. Shared
// by login, registration, and refresh rotation.
func (s *AuthService) issueSession(ctx context.Context, user *models.User, ipAddress, userAgent string) (*AuthResponse, error) {
	accessToken, _, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, refreshJTI, err := s.tm.GenerateRefreshToken(user)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	record := &models.SessionRecord{
		UserID:         user.ID,
		RefreshTokenID: refreshJTI,
		Fingerprint:    deviceFingerprint(ipAddress, userAgent),
		IssuedAt:       now,
		ExpiresAt:      now.Add(s.tm.RefreshTokenExpiry()),
	}
	if err := s.sessions.SaveSession(ctx, record, s.tm.RefreshTokenExpiry()); err != nil {
		s.logger.Error("failed to persist session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: session store", models.ErrDependencyUnavailable)
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tm.AccessTokenExpiry().Seconds()),
		User:         userModelToResponse(user),
	}, nil
}

// NormalizeEmail trims and lower-cases an email address. All comparisons
// and storage go through this first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// deviceFingerprint hashes IP + user agent for the session record
func deviceFingerprint(ipAddress, userAgent string) string {
	hash := sha256.Sum256([]byte(ipAddress + ":" + userAgent))
	return fmt.Sprintf("%x", hash)[:32]
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role,
		Permissions:   models.RolePermissions(user.Role),
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
	}
}

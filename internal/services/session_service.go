package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/touchline/auth-service/internal/auth"
	"github.com/touchline/auth-service/internal/models"
	pkglogger "github.com/touchline/auth-service/pkg/logger"
)

// SessionService handles token lifecycle after login: logout revocation and
// refresh-token exchange.
type SessionService struct {
	repo        UserRepository
	sessions    SessionStore
	tm          *auth.TokenManager
	authService *AuthService
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger

	rotateRefreshTokens bool
}

// NewSessionService creates a new SessionService
func NewSessionService(
	repo UserRepository,
	sessions SessionStore,
	tm *auth.TokenManager,
	authService *AuthService,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	rotateRefreshTokens bool,
) *SessionService {
	return &SessionService{
		repo:                repo,
		sessions:            sessions,
		tm:                  tm,
		authService:         authService,
		logger:              logger,
		auditLogger:         auditLogger,
		rotateRefreshTokens: rotateRefreshTokens,
	}
}

// Logout revokes the presented access token, revokes the refresh token
// tracked in the session record, and tears down the session. Both halves of
// the pair die together: a refresh token must not survive the logout of the
// login that issued it. Logout is idempotent: an already-expired or garbage
// token still returns success, since the caller's goal (the token no longer
// works) is met either way.
func (s *SessionService) Logout(ctx context.Context, accessToken, ipAddress string) error {
	claims, err := s.tm.VerifyToken(accessToken, auth.TokenTypeAccess)
	if err != nil {
		// Nothing to revoke. The token was never usable, or stopped
		// being usable on its own.
		s.logger.Debug("logout with unusable token", slog.Any("error", err))
		return nil
	}

	remaining := denylistTTL(claims.ExpiresAt, s.tm.AccessTokenExpiry())
	if err := s.sessions.RevokeToken(ctx, claims.ID, remaining); err != nil {
		s.logger.Error("failed to revoke access token",
			slog.String("user_id", claims.Subject),
			slog.Any("error", err))
		return fmt.Errorf("%w: session store", models.ErrDependencyUnavailable)
	}

	record, err := s.sessions.GetSession(ctx, claims.Subject)
	switch {
	case err == nil:
		if err := s.sessions.RevokeToken(ctx, record.RefreshTokenID, time.Until(record.ExpiresAt)); err != nil {
			s.logger.Error("failed to revoke refresh token",
				slog.String("user_id", claims.Subject),
				slog.Any("error", err))
			return fmt.Errorf("%w: session store", models.ErrDependencyUnavailable)
		}
	case errors.Is(err, models.ErrNotFound):
		// Session already gone; nothing left to revoke.
	default:
		s.logger.Error("failed to load session for logout",
			slog.String("user_id", claims.Subject),
			slog.Any("error", err))
		return fmt.Errorf("%w: session store", models.ErrDependencyUnavailable)
	}

	if err := s.sessions.DeleteSession(ctx, claims.Subject); err != nil {
		s.logger.Error("failed to delete session",
			slog.String("user_id", claims.Subject),
			slog.Any("error", err))
		return fmt.Errorf("%w: session store", models.ErrDependencyUnavailable)
	}

	s.auditLogger.LogAccountAction("logout", claims.Subject, ipAddress)
	return nil
}

// Refresh exchanges a valid refresh token for a new access token. With
// rotation enabled the refresh token is single-use: the old one is revoked
// for its remaining validity and a new pair comes back. Without rotation
// the caller keeps using the same refresh token until it expires.
func (s *SessionService) Refresh(ctx context.Context, refreshToken, ipAddress, userAgent string) (*AuthResponse, error) {
	claims, err := s.tm.VerifyToken(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("failed to check token revocation",
			slog.String("user_id", claims.Subject),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: session store", models.ErrDependencyUnavailable)
	}
	if revoked {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "refresh_failed",
			UserID:        claims.Subject,
			IPAddress:     ipAddress,
			FailureReason: "token_revoked",
			Success:       false,
		})
		return nil, models.ErrTokenRevoked
	}

	// Role and account state are re-read on every refresh so a demotion
	// or deactivation takes effect within one access-token lifetime.
	user, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load user for refresh",
			slog.String("user_id", claims.Subject),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: credential store", models.ErrDependencyUnavailable)
	}
	if !user.IsActive {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "refresh_failed",
			UserID:        user.ID,
			IPAddress:     ipAddress,
			FailureReason: "account_disabled",
			Success:       false,
		})
		return nil, models.ErrUnauthorized
	}

	if s.rotateRefreshTokens {
		return s.rotate(ctx, user, claims, ipAddress, userAgent)
	}

	accessToken, _, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAccountAction("token_refreshed", user.ID, ipAddress)

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tm.AccessTokenExpiry().Seconds()),
		User:         userModelToResponse(user),
	}, nil
}

// rotate issues a full replacement pair and burns the old refresh token.
// The new session record overwrites the old one under the same user key.
func (s *SessionService) rotate(ctx context.Context, user *models.User, old *auth.Claims, ipAddress, userAgent string) (*AuthResponse, error) {
	resp, err := s.authService.issueSession(ctx, user, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	remaining := denylistTTL(old.ExpiresAt, s.tm.RefreshTokenExpiry())
	if err := s.sessions.RevokeToken(ctx, old.ID, remaining); err != nil {
		// The new pair is already out; a rotation that leaves the old
		// token alive is logged loudly but not rolled back.
		s.logger.Error("failed to revoke rotated refresh token",
			slog.String("user_id", user.ID),
			slog.String("jti", old.ID),
			slog.Any("error", err))
	}

	s.auditLogger.LogAccountAction("token_rotated", user.ID, ipAddress)
	return resp, nil
}

// denylistTTL bounds a denylist entry by the token's remaining validity.
// Tokens missing an exp claim fall back to the configured lifetime rather
// than panicking or living forever.
func denylistTTL(expiresAt *jwt.NumericDate, fallback time.Duration) time.Duration {
	if expiresAt == nil {
		return fallback
	}
	return time.Until(expiresAt.Time)
}

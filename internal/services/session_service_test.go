package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchline/auth-service/internal/auth"
	"github.com/touchline/auth-service/internal/models"
)

type sessionFixture struct {
	svc      *SessionService
	auth     *AuthService
	repo     *MockUserRepository
	sessions *MockSessionStore
	tm       *auth.TokenManager
	user     *models.User
}

// trackSessions points the mock store at an in-memory session record and
// denylist so lifecycle tests observe revocations the way Redis would.
func (f *sessionFixture) trackSessions() map[string]bool {
	denylist := map[string]bool{}
	records := map[string]*models.SessionRecord{}

	f.sessions.SaveSessionFunc = func(ctx context.Context, record *models.SessionRecord, ttl time.Duration) error {
		records[record.UserID] = record
		return nil
	}
	f.sessions.GetSessionFunc = func(ctx context.Context, userID string) (*models.SessionRecord, error) {
		if record, ok := records[userID]; ok {
			return record, nil
		}
		return nil, models.ErrNotFound
	}
	f.sessions.DeleteSessionFunc = func(ctx context.Context, userID string) error {
		delete(records, userID)
		return nil
	}
	f.sessions.RevokeTokenFunc = func(ctx context.Context, jti string, remaining time.Duration) error {
		denylist[jti] = true
		return nil
	}
	f.sessions.IsRevokedFunc = func(ctx context.Context, jti string) (bool, error) {
		return denylist[jti], nil
	}
	return denylist
}

func newSessionFixture(t *testing.T, rotate bool) *sessionFixture {
	t.Helper()
	user := NewTestUser("user-1", "coach@club.example", "Dana Reyes", models.RoleCoach, "unused")
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			if id == user.ID {
				return user, nil
			}
			return nil, models.ErrNotFound
		},
	}
	sessions := &MockSessionStore{}
	tm := newTestTokenManager()
	logger := newTestLogger()
	audit := newTestAuditLogger()

	authSvc := NewAuthService(repo, sessions, tm, newTestGuard(newMemoryCounterStore()), &syncRunner{}, logger, audit, false)
	svc := NewSessionService(repo, sessions, tm, authSvc, logger, audit, rotate)

	return &sessionFixture{svc: svc, auth: authSvc, repo: repo, sessions: sessions, tm: tm, user: user}
}

func TestSessionService_Logout_RevokesAndDeletes(t *testing.T) {
	f := newSessionFixture(t, false)
	accessToken, accessJTI, err := f.tm.GenerateAccessToken(f.user)
	require.NoError(t, err)

	revokedFor := map[string]time.Duration{}
	f.sessions.RevokeTokenFunc = func(ctx context.Context, id string, remaining time.Duration) error {
		revokedFor[id] = remaining
		return nil
	}
	f.sessions.GetSessionFunc = func(ctx context.Context, userID string) (*models.SessionRecord, error) {
		return &models.SessionRecord{
			UserID:         userID,
			RefreshTokenID: "refresh-jti",
			ExpiresAt:      time.Now().Add(168 * time.Hour),
		}, nil
	}
	var deletedUser string
	f.sessions.DeleteSessionFunc = func(ctx context.Context, userID string) error {
		deletedUser = userID
		return nil
	}

	require.NoError(t, f.svc.Logout(context.Background(), accessToken, "203.0.113.7"))

	assert.Equal(t, "user-1", deletedUser)

	// The whole pair is revoked, each entry bounded by its token's life
	assert.Contains(t, revokedFor, accessJTI)
	assert.Greater(t, revokedFor[accessJTI], 14*time.Minute)
	assert.LessOrEqual(t, revokedFor[accessJTI], 15*time.Minute)

	assert.Contains(t, revokedFor, "refresh-jti")
	assert.Greater(t, revokedFor["refresh-jti"], 167*time.Hour)
	assert.LessOrEqual(t, revokedFor["refresh-jti"], 168*time.Hour)
}

func TestSessionService_Logout_Idempotent(t *testing.T) {
	f := newSessionFixture(t, false)
	accessToken, _, err := f.tm.GenerateAccessToken(f.user)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), accessToken, "203.0.113.7"))
	require.NoError(t, f.svc.Logout(context.Background(), accessToken, "203.0.113.7"))
}

func TestSessionService_Logout_GarbageTokenIsSuccess(t *testing.T) {
	f := newSessionFixture(t, false)

	revoked := false
	f.sessions.RevokeTokenFunc = func(ctx context.Context, id string, remaining time.Duration) error {
		revoked = true
		return nil
	}

	assert.NoError(t, f.svc.Logout(context.Background(), "not-a-jwt", "203.0.113.7"))
	assert.False(t, revoked)
}

func TestSessionService_Logout_RefreshTokenIsSuccessNoRevoke(t *testing.T) {
	f := newSessionFixture(t, false)
	refreshToken, _, err := f.tm.GenerateRefreshToken(f.user)
	require.NoError(t, err)

	revoked := false
	f.sessions.RevokeTokenFunc = func(ctx context.Context, id string, remaining time.Duration) error {
		revoked = true
		return nil
	}

	// Logout takes an access token; a refresh token is "unusable" here
	assert.NoError(t, f.svc.Logout(context.Background(), refreshToken, "203.0.113.7"))
	assert.False(t, revoked)
}

func TestSessionService_Logout_StoreDown(t *testing.T) {
	f := newSessionFixture(t, false)
	accessToken, _, err := f.tm.GenerateAccessToken(f.user)
	require.NoError(t, err)

	f.sessions.RevokeTokenFunc = func(ctx context.Context, id string, remaining time.Duration) error {
		return models.ErrDependencyUnavailable
	}

	err = f.svc.Logout(context.Background(), accessToken, "203.0.113.7")
	assert.ErrorIs(t, err, models.ErrDependencyUnavailable)
}

func TestSessionService_Logout_TokenWithoutExpiry(t *testing.T) {
	f := newSessionFixture(t, false)

	// Signed with the right secret but missing exp; the denylist entry
	// falls back to the configured access token lifetime.
	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		Role:      models.RoleCoach,
		TokenType: auth.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:      "jti-no-exp",
			Subject: "user-1",
		},
	})
	tokenString, err := noExp.SignedString([]byte("test-secret-at-least-32-bytes-long!!"))
	require.NoError(t, err)

	revokedFor := map[string]time.Duration{}
	f.sessions.RevokeTokenFunc = func(ctx context.Context, id string, remaining time.Duration) error {
		revokedFor[id] = remaining
		return nil
	}

	require.NoError(t, f.svc.Logout(context.Background(), tokenString, "203.0.113.7"))

	assert.Equal(t, 15*time.Minute, revokedFor["jti-no-exp"])
}

func TestSessionService_Refresh_Success(t *testing.T) {
	f := newSessionFixture(t, false)
	refreshToken, _, err := f.tm.GenerateRefreshToken(f.user)
	require.NoError(t, err)

	resp, err := f.svc.Refresh(context.Background(), refreshToken, "203.0.113.7", "test-agent")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, refreshToken, resp.RefreshToken, "rotation off: same refresh token comes back")
	assert.Equal(t, int64(900), resp.ExpiresIn)

	claims, err := f.tm.VerifyToken(resp.AccessToken, auth.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, models.RoleCoach, claims.Role)
}

func TestSessionService_Refresh_AccessTokenRejected(t *testing.T) {
	f := newSessionFixture(t, false)
	accessToken, _, err := f.tm.GenerateAccessToken(f.user)
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), accessToken, "203.0.113.7", "test-agent")
	assert.ErrorIs(t, err, models.ErrTokenWrongType)
}

func TestSessionService_Refresh_MalformedToken(t *testing.T) {
	f := newSessionFixture(t, false)

	_, err := f.svc.Refresh(context.Background(), "not-a-jwt", "203.0.113.7", "test-agent")
	assert.ErrorIs(t, err, models.ErrTokenMalformed)
}

func TestSessionService_Refresh_RevokedToken(t *testing.T) {
	f := newSessionFixture(t, false)
	refreshToken, jti, err := f.tm.GenerateRefreshToken(f.user)
	require.NoError(t, err)

	f.sessions.IsRevokedFunc = func(ctx context.Context, id string) (bool, error) {
		return id == jti, nil
	}

	_, err = f.svc.Refresh(context.Background(), refreshToken, "203.0.113.7", "test-agent")
	assert.ErrorIs(t, err, models.ErrTokenRevoked)
}

func TestSessionService_Refresh_DeactivatedUser(t *testing.T) {
	f := newSessionFixture(t, false)
	refreshToken, _, err := f.tm.GenerateRefreshToken(f.user)
	require.NoError(t, err)

	f.user.IsActive = false

	_, err = f.svc.Refresh(context.Background(), refreshToken, "203.0.113.7", "test-agent")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestSessionService_Refresh_DeletedUser(t *testing.T) {
	f := newSessionFixture(t, false)
	refreshToken, _, err := f.tm.GenerateRefreshToken(f.user)
	require.NoError(t, err)

	f.repo.GetByIDFunc = func(ctx context.Context, id string) (*models.User, error) {
		return nil, models.ErrNotFound
	}

	_, err = f.svc.Refresh(context.Background(), refreshToken, "203.0.113.7", "test-agent")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestSessionService_Refresh_PicksUpRoleChange(t *testing.T) {
	f := newSessionFixture(t, false)
	refreshToken, _, err := f.tm.GenerateRefreshToken(f.user)
	require.NoError(t, err)

	f.user.Role = models.RolePlayer

	resp, err := f.svc.Refresh(context.Background(), refreshToken, "203.0.113.7", "test-agent")
	require.NoError(t, err)

	claims, err := f.tm.VerifyToken(resp.AccessToken, auth.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, models.RolePlayer, claims.Role)
	assert.ElementsMatch(t, models.RolePermissions(models.RolePlayer), claims.Permissions)
}

func TestSessionService_Refresh_RotationIssuesNewPairAndBurnsOld(t *testing.T) {
	f := newSessionFixture(t, true)
	refreshToken, oldJTI, err := f.tm.GenerateRefreshToken(f.user)
	require.NoError(t, err)

	var revokedJTI string
	f.sessions.RevokeTokenFunc = func(ctx context.Context, id string, remaining time.Duration) error {
		revokedJTI = id
		return nil
	}
	var saved *models.SessionRecord
	f.sessions.SaveSessionFunc = func(ctx context.Context, record *models.SessionRecord, ttl time.Duration) error {
		saved = record
		return nil
	}

	resp, err := f.svc.Refresh(context.Background(), refreshToken, "203.0.113.7", "test-agent")
	require.NoError(t, err)

	assert.NotEqual(t, refreshToken, resp.RefreshToken)
	assert.Equal(t, oldJTI, revokedJTI)

	newClaims, err := f.tm.VerifyToken(resp.RefreshToken, auth.TokenTypeRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, oldJTI, newClaims.ID)

	require.NotNil(t, saved)
	assert.Equal(t, newClaims.ID, saved.RefreshTokenID, "session record tracks the replacement token")
}

func TestSessionService_LogoutThenRefreshFails(t *testing.T) {
	f := newSessionFixture(t, false)
	denylist := f.trackSessions()

	pair, err := f.auth.issueSession(context.Background(), f.user, "203.0.113.7", "test-agent")
	require.NoError(t, err)

	accessClaims, err := f.tm.VerifyToken(pair.AccessToken, auth.TokenTypeAccess)
	require.NoError(t, err)
	refreshClaims, err := f.tm.VerifyToken(pair.RefreshToken, auth.TokenTypeRefresh)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), pair.AccessToken, "203.0.113.7"))

	// Logout kills the whole pair: both jtis are denylisted and the
	// refresh token from that login cannot mint new access tokens.
	assert.True(t, denylist[accessClaims.ID])
	assert.True(t, denylist[refreshClaims.ID])

	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken, "203.0.113.7", "test-agent")
	assert.ErrorIs(t, err, models.ErrTokenRevoked)

	// A fresh login is unaffected
	next, err := f.auth.issueSession(context.Background(), f.user, "203.0.113.7", "test-agent")
	require.NoError(t, err)
	_, err = f.svc.Refresh(context.Background(), next.RefreshToken, "203.0.113.7", "test-agent")
	assert.NoError(t, err)
}

func TestSessionService_LogoutThenRefreshFails_Rotation(t *testing.T) {
	f := newSessionFixture(t, true)
	f.trackSessions()

	pair, err := f.auth.issueSession(context.Background(), f.user, "203.0.113.7", "test-agent")
	require.NoError(t, err)

	// Rotate once so the session record tracks the replacement token
	rotated, err := f.svc.Refresh(context.Background(), pair.RefreshToken, "203.0.113.7", "test-agent")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), rotated.AccessToken, "203.0.113.7"))

	_, err = f.svc.Refresh(context.Background(), rotated.RefreshToken, "203.0.113.7", "test-agent")
	assert.ErrorIs(t, err, models.ErrTokenRevoked)
}

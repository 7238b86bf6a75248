package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/touchline/auth-service/internal/models"
)

const (
	// TokenTypeAccess marks short-lived tokens accepted on authenticated requests
	TokenTypeAccess = "access"
	// TokenTypeRefresh marks long-lived tokens accepted only by the refresh operation
	TokenTypeRefresh = "refresh"
)

// Claims is the signed token payload. Subject carries the user ID and ID
// carries the jti used for revocation. Permissions are resolved from the
// role at issuance so authorization checks need no database round-trip.
type Claims struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	TokenType   string   `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access and refresh tokens with a single
// process-wide HMAC secret.
type TokenManager struct {
	secret             []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:             []byte(secret),
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
	}
}

// AccessTokenExpiry reports the configured access token lifetime
func (tm *TokenManager) AccessTokenExpiry() time.Duration {
	return tm.accessTokenExpiry
}

// RefreshTokenExpiry reports the configured refresh token lifetime
func (tm *TokenManager) RefreshTokenExpiry() time.Duration {
	return tm.refreshTokenExpiry
}

// GenerateAccessToken creates a short-lived access token for the user.
// Returns the signed token and its jti.
func (tm *TokenManager) GenerateAccessToken(user *models.User) (string, string, error) {
	return tm.generate(user, TokenTypeAccess, tm.accessTokenExpiry)
}

// GenerateRefreshToken creates a long-lived refresh token for the user.
// Returns the signed token and its jti.
func (tm *TokenManager) GenerateRefreshToken(user *models.User) (string, string, error) {
	return tm.generate(user, TokenTypeRefresh, tm.refreshTokenExpiry)
}

func (tm *TokenManager) generate(user *models.User, tokenType string, expiry time.Duration) (string, string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := &Claims{
		Role:        user.Role,
		Permissions: models.RolePermissions(user.Role),
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", "", err
	}

	return tokenString, jti, nil
}

// VerifyToken checks signature, expiry, and type claim. Errors distinguish
// expired from malformed/tampered from wrong-type; callers treat an expired
// access token as "please refresh" and an expired refresh token as
// "please log in again".
func (tm *TokenManager) VerifyToken(tokenString, expectedType string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, models.ErrTokenMalformed
		}
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrTokenMalformed
	}

	if !token.Valid {
		return nil, models.ErrTokenMalformed
	}

	// Type discriminator is checked on every verification: an access token
	// must never pass as refresh and vice versa.
	if claims.TokenType != expectedType {
		return nil, models.ErrTokenWrongType
	}

	return claims, nil
}

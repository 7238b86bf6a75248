package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/touchline/auth-service/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ClaimsContextKey is the key for storing token claims in context
	ClaimsContextKey contextKey = "claims"
)

// RevocationChecker reports whether a token identifier has been revoked
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Middleware validates bearer access tokens, rejects revoked ones, and
// injects the claims into the request context. Permission checks never hit
// the database: the claims already carry the permission set.
//
// A failing revocation check fails open so a Redis outage does not take
// down every authenticated request; malformed and expired tokens still
// fail closed above it.
func Middleware(tm *TokenManager, revocation RevocationChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := tm.VerifyToken(parts[1], TokenTypeAccess)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			if revocation != nil && claims.ID != "" {
				revoked, err := revocation.IsRevoked(r.Context(), claims.ID)
				if err == nil && revoked {
					http.Error(w, "token has been revoked", http.StatusUnauthorized)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission enforces a capability on routes behind Middleware
func RequirePermission(permission string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r)
			if claims == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if !models.HasPermission(claims.Permissions, permission) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClaimsFromContext retrieves token claims stored by Middleware
func GetClaimsFromContext(r *http.Request) *Claims {
	claims, ok := r.Context().Value(ClaimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/touchline/auth-service/internal/models"
)

type stubRevocation struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocation) IsRevoked(_ context.Context, jti string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[jti], nil
}

func newTestHandler(tm *TokenManager, revocation RevocationChecker) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(tm, revocation)(ok)
}

func TestMiddlewareAcceptsValidAccessToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	token, _, err := tm.GenerateAccessToken(testUser())
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	newTestHandler(tm, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareRejectsRefreshToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	token, _, err := tm.GenerateRefreshToken(testUser())
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	newTestHandler(tm, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareMissingOrMalformedHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "no bearer prefix", header: "token-without-scheme"},
		{name: "wrong scheme", header: "Basic abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			newTestHandler(tm, nil).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestMiddlewareRejectsRevokedToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	token, jti, err := tm.GenerateAccessToken(testUser())
	if err != nil {
		t.Fatal(err)
	}

	revocation := &stubRevocation{revoked: map[string]bool{jti: true}}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	newTestHandler(tm, revocation).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareFailsOpenOnRevocationError(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	token, _, err := tm.GenerateAccessToken(testUser())
	if err != nil {
		t.Fatal(err)
	}

	revocation := &stubRevocation{err: errors.New("redis down")}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	newTestHandler(tm, revocation).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (revocation check fails open)", rec.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(tm, nil)(RequirePermission(models.PermTacticsWrite)(ok))

	tests := []struct {
		name       string
		role       string
		wantStatus int
	}{
		{name: "coach can write tactics", role: models.RoleCoach, wantStatus: http.StatusOK},
		{name: "admin wildcard", role: models.RoleAdmin, wantStatus: http.StatusOK},
		{name: "player denied", role: models.RolePlayer, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &models.User{ID: "u1", Role: tt.role}
			token, _, err := tm.GenerateAccessToken(user)
			if err != nil {
				t.Fatal(err)
			}

			req := httptest.NewRequest(http.MethodGet, "/tactics", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/touchline/auth-service/internal/auth"
	"github.com/touchline/auth-service/internal/handlers"
	"github.com/touchline/auth-service/internal/middleware"
	pkghttp "github.com/touchline/auth-service/pkg/http"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.TokenManager,
	revocation auth.RevocationChecker,
	health http.HandlerFunc,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	router.Get("/health", health)

	// Public routes. Credential endpoints get the per-IP request limiter;
	// logout and verify-email are cheap and idempotent.
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/refresh", authHandler.Refresh)
	router.Post("/auth/logout", authHandler.Logout)
	router.Post("/auth/verify-email", authHandler.VerifyEmail)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager, revocation))

		r.Get("/auth/me", authHandler.Me)
	})
}

// Health returns a liveness/readiness handler backed by the given checks.
// A failing check reports 503 so the load balancer drains the instance.
func Health(checks map[string]func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(); err != nil {
				status[name] = "unavailable"
				healthy = false
				continue
			}
			status[name] = "ok"
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		pkghttp.WriteJSON(w, code, status)
	}
}

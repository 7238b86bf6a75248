package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/touchline/auth-service/internal/auth"
	"github.com/touchline/auth-service/internal/background"
	"github.com/touchline/auth-service/internal/config"
	"github.com/touchline/auth-service/internal/database"
	"github.com/touchline/auth-service/internal/handlers"
	"github.com/touchline/auth-service/internal/middleware"
	"github.com/touchline/auth-service/internal/models"
	"github.com/touchline/auth-service/internal/repositories"
	"github.com/touchline/auth-service/internal/routes"
	"github.com/touchline/auth-service/internal/services"
	"github.com/touchline/auth-service/internal/store"
	pkgauth "github.com/touchline/auth-service/pkg/auth"
	pkghttp "github.com/touchline/auth-service/pkg/http"
	pkglogger "github.com/touchline/auth-service/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	rdb, err := store.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer rdb.Close()

	sessionStore := store.NewSessionStore(rdb)
	userRepo := repositories.NewUserRepository(db.Pool)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	guard := services.NewLockoutService(sessionStore, services.LockoutConfig{
		Threshold: cfg.Auth.LockoutThreshold,
		Window:    cfg.Auth.LockoutWindow,
	}, logger)

	// Background runner for fire-and-forget work: last-login updates and
	// verification email delivery.
	runner := background.NewRunner(4, 256, 30*time.Second, logger)

	var emailSender services.EmailSender
	if cfg.Email.Enabled {
		sesSender, err := services.NewSESEmailService(
			cfg.Email.AWSRegion,
			cfg.Email.FromAddress,
			cfg.Email.VerificationURLBase,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		emailSender = sesSender
	}

	authService := services.NewAuthService(
		userRepo, sessionStore, tokenManager, guard, runner,
		logger, auditLogger, cfg.Auth.RequireEmailVerification,
	)
	registrationService := services.NewRegistrationService(
		authService, userRepo, sessionStore, emailSender, runner,
		logger, auditLogger, cfg.Auth.RequireEmailVerification, cfg.Email.TokenExpiry,
	)
	sessionService := services.NewSessionService(
		userRepo, sessionStore, tokenManager, authService,
		logger, auditLogger, cfg.Auth.RotateRefreshTokens,
	)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, registrationService, sessionService, ipConfig)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootCancel()

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	health := routes.Health(map[string]func() error{
		"database": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.HealthCheck(ctx)
		},
		"redis": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rdb.Ping(ctx).Err()
		},
	})

	routes.RegisterRoutes(router, authHandler, tokenManager, sessionStore, health)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Drain queued background work after the listener is down so in-flight
	// last-login updates and verification emails finish.
	runner.Stop()

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin account when ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no such user exists yet.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hash, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:         services.NormalizeEmail(adminEmail),
		PasswordHash:  hash,
		Name:          "Administrator",
		Role:          models.RoleAdmin,
		IsActive:      true,
		EmailVerified: true,
	}
	created, err := userRepo.Create(ctx, admin)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("user_id", created.ID))
	return nil
}

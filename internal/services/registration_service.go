package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/touchline/auth-service/internal/models"
	pkgauth "github.com/touchline/auth-service/pkg/auth"
	pkglogger "github.com/touchline/auth-service/pkg/logger"
)

// EmailSender delivers verification emails out of band
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error
}

// RegisterInput is the validated registration payload
type RegisterInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required"`
	Name     string `validate:"required,min=1,max=100"`
	Role     string `validate:"omitempty,oneof=admin coach player scout"`
}

// RegisterResponse is an AuthResponse plus the verification flag
type RegisterResponse struct {
	AuthResponse
	VerificationPending bool `json:"verification_pending"`
}

// ValidationError wraps a field-level validation failure so the transport
// layer can report it precisely; validation problems are always safe to
// detail to the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validate = validator.New()

// RegistrationService creates accounts and hands out the initial session
type RegistrationService struct {
	auth        *AuthService
	repo        UserRepository
	sessions    SessionStore
	email       EmailSender
	runner      taskSubmitter
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger

	requireVerification  bool
	verificationTokenTTL time.Duration
}

// NewRegistrationService creates a new RegistrationService. email may be
// nil when delivery is disabled; verification tokens are still minted so
// the flow can be driven manually.
func NewRegistrationService(
	authService *AuthService,
	repo UserRepository,
	sessions SessionStore,
	email EmailSender,
	runner taskSubmitter,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
	requireVerification bool,
	verificationTokenTTL time.Duration,
) *RegistrationService {
	return &RegistrationService{
		auth:                 authService,
		repo:                 repo,
		sessions:             sessions,
		email:                email,
		runner:               runner,
		logger:               logger,
		auditLogger:          auditLogger,
		requireVerification:  requireVerification,
		verificationTokenTTL: verificationTokenTTL,
	}
}

// Register validates input, creates the user, and issues the first token
// pair. Uniqueness collisions return models.ErrEmailTaken: the product
// accepts the account-enumeration tradeoff in exchange for a usable
// "already registered, log in instead" flow.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput, ipAddress, userAgent string) (*RegisterResponse, error) {
	input.Email = NormalizeEmail(input.Email)

	if err := validate.Struct(input); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return nil, &ValidationError{Field: ve[0].Field(), Message: validationMessage(ve[0])}
		}
		return nil, models.ErrBadRequest
	}

	if err := pkgauth.ValidatePassword(input.Password); err != nil {
		var policyErr *pkgauth.PasswordPolicyError
		if errors.As(err, &policyErr) {
			return nil, &ValidationError{Field: "Password", Message: policyErr.Reasons[0]}
		}
		return nil, models.ErrBadRequest
	}

	if input.Role == "" {
		input.Role = models.RolePlayer
	}

	_, err := s.repo.GetByEmail(ctx, input.Email)
	if err == nil {
		s.logger.Info("registration rejected: email taken",
			slog.String("email", pkglogger.SanitizedEmail(input.Email)))
		return nil, models.ErrEmailTaken
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email uniqueness", slog.Any("error", err))
		return nil, fmt.Errorf("%w: credential store", models.ErrDependencyUnavailable)
	}

	hashedPassword, err := pkgauth.HashPassword(input.Password)
	if err != nil {
		// Hashing failure is an internal error, never a validation error.
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:         input.Email,
		PasswordHash:  hashedPassword,
		Name:          input.Name,
		Role:          input.Role,
		IsActive:      !s.requireVerification,
		EmailVerified: !s.requireVerification,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Lost the race against a concurrent registration.
			return nil, models.ErrEmailTaken
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("%w: credential store", models.ErrDependencyUnavailable)
	}

	resp, err := s.auth.issueSession(ctx, created, ipAddress, userAgent)
	if err != nil {
		return nil, err
	}

	s.dispatchVerification(ctx, created)

	s.auditLogger.LogAccountAction("user_registered", created.ID, ipAddress)

	return &RegisterResponse{
		AuthResponse:        *resp,
		VerificationPending: s.requireVerification && !created.EmailVerified,
	}, nil
}

// dispatchVerification mints a verification token and hands delivery to
// the background runner. Delivery failure is logged, never surfaced:
// registration has already succeeded.
func (s *RegistrationService) dispatchVerification(ctx context.Context, user *models.User) {
	if !s.requireVerification || user.EmailVerified {
		return
	}

	token, err := pkgauth.GenerateRandomToken(32)
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return
	}

	expiresAt := time.Now().Add(s.verificationTokenTTL)
	if err := s.sessions.SaveVerificationToken(ctx, token, user.ID, s.verificationTokenTTL); err != nil {
		s.logger.Warn("failed to store verification token", slog.Any("error", err))
		return
	}

	if s.email == nil {
		return
	}

	email := user.Email
	s.runner.Submit("send_verification_email", func(taskCtx context.Context) error {
		return s.email.SendVerificationEmail(taskCtx, email, token, expiresAt)
	})
}

// VerifyEmail redeems a verification token and marks the account verified.
// Tokens are single-use; unknown or expired tokens map to ErrNotFound.
func (s *RegistrationService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return models.ErrBadRequest
	}

	userID, err := s.sessions.ConsumeVerificationToken(ctx, token)
	if err != nil {
		return err
	}

	if err := s.repo.SetEmailVerified(ctx, userID); err != nil {
		s.logger.Error("failed to mark email verified", slog.String("user_id", userID), slog.Any("error", err))
		return err
	}

	s.auditLogger.LogAccountAction("email_verified", userID, "")
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return "is invalid"
	}
}

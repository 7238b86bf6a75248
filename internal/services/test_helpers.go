package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/touchline/auth-service/internal/auth"
	"github.com/touchline/auth-service/internal/models"
	pkglogger "github.com/touchline/auth-service/pkg/logger"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc          func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc       func(ctx context.Context, email string) (*models.User, error)
	CreateFunc           func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateLastLoginFunc  func(ctx context.Context, id string, at time.Time) error
	SetEmailVerifiedFunc func(ctx context.Context, id string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if m.UpdateLastLoginFunc != nil {
		return m.UpdateLastLoginFunc(ctx, id, at)
	}
	return nil
}

func (m *MockUserRepository) SetEmailVerified(ctx context.Context, id string) error {
	if m.SetEmailVerifiedFunc != nil {
		return m.SetEmailVerifiedFunc(ctx, id)
	}
	return nil
}

// MockSessionStore implements SessionStore for testing. The zero value
// behaves like an empty, healthy store.
type MockSessionStore struct {
	SaveSessionFunc              func(ctx context.Context, record *models.SessionRecord, ttl time.Duration) error
	GetSessionFunc               func(ctx context.Context, userID string) (*models.SessionRecord, error)
	DeleteSessionFunc            func(ctx context.Context, userID string) error
	RevokeTokenFunc              func(ctx context.Context, jti string, remaining time.Duration) error
	IsRevokedFunc                func(ctx context.Context, jti string) (bool, error)
	SaveVerificationTokenFunc    func(ctx context.Context, token, userID string, ttl time.Duration) error
	ConsumeVerificationTokenFunc func(ctx context.Context, token string) (string, error)
}

func (m *MockSessionStore) SaveSession(ctx context.Context, record *models.SessionRecord, ttl time.Duration) error {
	if m.SaveSessionFunc != nil {
		return m.SaveSessionFunc(ctx, record, ttl)
	}
	return nil
}

func (m *MockSessionStore) GetSession(ctx context.Context, userID string) (*models.SessionRecord, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionStore) DeleteSession(ctx context.Context, userID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, userID)
	}
	return nil
}

func (m *MockSessionStore) RevokeToken(ctx context.Context, jti string, remaining time.Duration) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, jti, remaining)
	}
	return nil
}

func (m *MockSessionStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if m.IsRevokedFunc != nil {
		return m.IsRevokedFunc(ctx, jti)
	}
	return false, nil
}

func (m *MockSessionStore) SaveVerificationToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	if m.SaveVerificationTokenFunc != nil {
		return m.SaveVerificationTokenFunc(ctx, token, userID, ttl)
	}
	return nil
}

func (m *MockSessionStore) ConsumeVerificationToken(ctx context.Context, token string) (string, error) {
	if m.ConsumeVerificationTokenFunc != nil {
		return m.ConsumeVerificationTokenFunc(ctx, token)
	}
	return "", models.ErrNotFound
}

// MockEmailSender implements EmailSender for testing
type MockEmailSender struct {
	SendVerificationEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailSender) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// syncRunner runs submitted tasks inline so tests observe their effects
// immediately.
type syncRunner struct {
	mu        sync.Mutex
	submitted []string
}

func (r *syncRunner) Submit(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	r.submitted = append(r.submitted, name)
	r.mu.Unlock()
	_ = fn(context.Background())
}

func (r *syncRunner) submittedNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.submitted...)
}

// memoryCounterStore is an in-process FailureCounterStore. Windows are
// ignored; tests that need real expiry use miniredis instead.
type memoryCounterStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{counts: make(map[string]int64)}
}

func (s *memoryCounterStore) IncrementFailures(ctx context.Context, identifier string, window time.Duration) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[identifier]++
	return s.counts[identifier], nil
}

func (s *memoryCounterStore) FailureCount(ctx context.Context, identifier string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[identifier], nil
}

func (s *memoryCounterStore) ResetFailures(ctx context.Context, identifier string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, identifier)
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(newTestLogger())
}

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("test-secret-at-least-32-bytes-long!!", 15*time.Minute, 168*time.Hour)
}

func newTestGuard(store FailureCounterStore) *LockoutService {
	return NewLockoutService(store, LockoutConfig{Threshold: 5, Window: 15 * time.Minute}, newTestLogger())
}

// NewTestUser returns an active, verified user with the given credentials
// already hashed.
func NewTestUser(id, email, name, role, passwordHash string) *models.User {
	now := time.Now()
	return &models.User{
		ID:            id,
		Email:         email,
		PasswordHash:  passwordHash,
		Name:          name,
		Role:          role,
		IsActive:      true,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

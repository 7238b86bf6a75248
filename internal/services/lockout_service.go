package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"
)

// FailureCounterStore is the slice of the session store the guard needs
type FailureCounterStore interface {
	IncrementFailures(ctx context.Context, identifier string, window time.Duration) (int64, error)
	FailureCount(ctx context.Context, identifier string) (int64, error)
	ResetFailures(ctx context.Context, identifier string) error
}

// LockoutConfig holds the brute-force policy: Threshold consecutive
// failures inside Window lock the identifier until the window lapses.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
}

// LockoutService tracks failed authentication attempts per identifier
// (hash of email + client IP) and refuses further attempts once the
// threshold is reached, regardless of credential correctness.
//
// The guard fails OPEN: if the backing store is unreachable it logs a
// warning and reports "not locked" rather than blocking every login. The
// counter is defense-in-depth, not a correctness dependency. Do not
// change this to fail closed without weighing the availability impact.
type LockoutService struct {
	store  FailureCounterStore
	config LockoutConfig
	logger *slog.Logger
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(store FailureCounterStore, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Identifier derives the lockout key for an email/IP pair. Hashing keeps
// raw addresses out of Redis keys.
func Identifier(email, ipAddress string) string {
	hash := sha256.Sum256([]byte(email + ":" + ipAddress))
	return fmt.Sprintf("%x", hash)[:32]
}

// IsLocked reports whether the identifier has exhausted its attempts.
// Consulted before any credential-store or bcrypt work, so a locked
// identifier pays no hashing cost.
func (s *LockoutService) IsLocked(ctx context.Context, identifier string) bool {
	count, err := s.store.FailureCount(ctx, identifier)
	if err != nil {
		// Fail open with a logged warning.
		s.logger.Warn("lockout check unavailable, failing open", slog.Any("error", err))
		return false
	}

	return count >= int64(s.config.Threshold)
}

// RecordFailure bumps the failure counter and returns the new count. The
// increment is atomic in the store; the lockout triggers at exactly the
// threshold regardless of interleaving. Store errors are logged and
// swallowed; a failed count must not mask the real authentication error.
func (s *LockoutService) RecordFailure(ctx context.Context, identifier string) int64 {
	count, err := s.store.IncrementFailures(ctx, identifier, s.config.Window)
	if err != nil {
		s.logger.Warn("failed to record authentication failure", slog.Any("error", err))
		return 0
	}

	if count == int64(s.config.Threshold) {
		s.logger.Warn("identifier locked out",
			slog.String("identifier", identifier),
			slog.Int64("failures", count),
			slog.Duration("window", s.config.Window))
	}

	return count
}

// Reset clears the counter immediately after any success
func (s *LockoutService) Reset(ctx context.Context, identifier string) {
	if err := s.store.ResetFailures(ctx, identifier); err != nil {
		s.logger.Warn("failed to reset lockout counter", slog.Any("error", err))
	}
}

// Package store implements the Redis-backed session state: active session
// records, the revoked-token denylist, per-identifier failure counters, and
// pending email-verification tokens. Everything carries a TTL; natural
// expiry in Redis replaces any reaper process.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/touchline/auth-service/internal/config"
	"github.com/touchline/auth-service/internal/models"
)

const (
	sessionKeyPrefix  = "session:"
	denylistKeyPrefix = "denylist:"
	lockoutKeyPrefix  = "lockout:"
	verifyKeyPrefix   = "verify:"
)

// NewClient connects to Redis and verifies the connection
func NewClient(cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	logger.Info("redis connection established", slog.String("addr", cfg.Addr))
	return rdb, nil
}

// SessionStore wraps the Redis client with the subsystem's key schema
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

func wrapRedisErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrDependencyUnavailable, op, err)
}

// SaveSession stores the session record keyed by user ID. The TTL is the
// refresh token's validity window, so a session record never outlives the
// refresh token it belongs to. An existing record is overwritten, which is
// how refresh rotation replaces the tracked refresh-token ID.
func (s *SessionStore) SaveSession(ctx context.Context, record *models.SessionRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	if err := s.rdb.Set(ctx, sessionKeyPrefix+record.UserID, payload, ttl).Err(); err != nil {
		return wrapRedisErr("save session", err)
	}
	return nil
}

// GetSession loads the active session record for a user. Returns
// models.ErrNotFound when no session exists or it has expired.
func (s *SessionStore) GetSession(ctx context.Context, userID string) (*models.SessionRecord, error) {
	payload, err := s.rdb.Get(ctx, sessionKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, wrapRedisErr("get session", err)
	}

	var record models.SessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal session record: %w", err)
	}
	return &record, nil
}

// DeleteSession removes a user's session record. Deleting an absent
// session is not an error; logout stays idempotent.
func (s *SessionStore) DeleteSession(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, sessionKeyPrefix+userID).Err(); err != nil {
		return wrapRedisErr("delete session", err)
	}
	return nil
}

// RevokeToken denylists a token identifier for the remainder of the
// token's validity. After that the token is rejected as expired anyway, so
// the entry is safe to let lapse.
func (s *SessionStore) RevokeToken(ctx context.Context, jti string, remaining time.Duration) error {
	if remaining <= 0 {
		// Already expired; nothing to track.
		return nil
	}

	if err := s.rdb.Set(ctx, denylistKeyPrefix+jti, "1", remaining).Err(); err != nil {
		return wrapRedisErr("revoke token", err)
	}
	return nil
}

// IsRevoked reports whether a token identifier is on the denylist
func (s *SessionStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, denylistKeyPrefix+jti).Result()
	if err != nil {
		return false, wrapRedisErr("check denylist", err)
	}
	return n > 0, nil
}

// IncrementFailures bumps the failed-attempt counter for an identifier and
// returns the new count. The increment is Redis-native INCR, so two
// concurrent failures can never both observe a pre-threshold value that a
// read-then-write would allow. INCR and EXPIRE travel in one pipeline, and
// EXPIRE runs in NX mode: the window TTL is attached exactly once, and a
// counter that somehow lost its TTL picks one up on the next failure
// instead of locking the identifier out permanently.
func (s *SessionStore) IncrementFailures(ctx context.Context, identifier string, window time.Duration) (int64, error) {
	key := lockoutKeyPrefix + identifier

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, wrapRedisErr("increment failures", err)
	}

	return incr.Val(), nil
}

// FailureCount reads the current failed-attempt count for an identifier
func (s *SessionStore) FailureCount(ctx context.Context, identifier string) (int64, error) {
	count, err := s.rdb.Get(ctx, lockoutKeyPrefix+identifier).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, wrapRedisErr("read failure count", err)
	}
	return count, nil
}

// ResetFailures clears the counter after a successful authentication
func (s *SessionStore) ResetFailures(ctx context.Context, identifier string) error {
	if err := s.rdb.Del(ctx, lockoutKeyPrefix+identifier).Err(); err != nil {
		return wrapRedisErr("reset failures", err)
	}
	return nil
}

// SaveVerificationToken stores a pending email-verification token
func (s *SessionStore) SaveVerificationToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, verifyKeyPrefix+token, userID, ttl).Err(); err != nil {
		return wrapRedisErr("save verification token", err)
	}
	return nil
}

// ConsumeVerificationToken atomically fetches and deletes a verification
// token, returning the user ID it was issued for. A token can therefore be
// redeemed at most once. Returns models.ErrNotFound for unknown or expired
// tokens.
func (s *SessionStore) ConsumeVerificationToken(ctx context.Context, token string) (string, error) {
	userID, err := s.rdb.GetDel(ctx, verifyKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", wrapRedisErr("consume verification token", err)
	}
	return userID, nil
}

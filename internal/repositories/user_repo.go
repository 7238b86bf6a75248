package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/touchline/auth-service/internal/database"
	"github.com/touchline/auth-service/internal/models"
)

// PgxPool is the subset of pgxpool.Pool the repository needs. pgxmock's
// pool satisfies it too, which keeps repository tests off a live database.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type UserRepository struct {
	pool PgxPool
}

func NewUserRepository(pool PgxPool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, password_hash, name, role, is_active, email_verified, last_login_at, created_at, updated_at`

func scanUserRow(row pgx.Row) (*models.User, error) {
	var user models.User
	var lastLoginAt *time.Time

	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.Role, &user.IsActive, &user.EmailVerified,
		&lastLoginAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.LastLoginAt = lastLoginAt
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail looks a user up by email. Comparison runs on lower(email) so
// lookups stay case-insensitive regardless of what the caller normalized.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = models.RolePlayer
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role, is_active, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name,
		user.Role, user.IsActive, user.EmailVerified,
		user.CreatedAt, user.UpdatedAt,
	))
}

// UpdateLastLogin stamps the user's last successful login. Called from the
// background runner; the login response never waits on it.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1, updated_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, at, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SetEmailVerified marks the user's email address as verified and activates
// accounts that were created inactive pending verification.
func (r *UserRepository) SetEmailVerified(ctx context.Context, id string) error {
	query := `UPDATE users SET email_verified = TRUE, is_active = TRUE, updated_at = $1 WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

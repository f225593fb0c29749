package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anivouch/anivouch/internal/domain"
)

// UserRepository implements storage.UserRepository using PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, username, name, password_hash, provider, image, email_verified, created_at, updated_at`

// Create stores a new user. Unique violations on email or username are left
// to the database constraint and classified at the handler boundary.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	db := getDB(ctx, r.pool)

	return withRetry(ctx, func() error {
		_, err := db.Exec(ctx, `
			INSERT INTO users (
				id, email, username, name, password_hash, provider, image,
				email_verified, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			user.ID,
			user.Email,
			user.Username,
			user.Name,
			user.PasswordHash,
			string(user.Provider),
			user.Image,
			user.EmailVerified,
			user.CreatedAt,
			user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	db := getDB(ctx, r.pool)

	row := db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	return scanUser(row)
}

// GetByEmail retrieves a user by their email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db := getDB(ctx, r.pool)

	row := db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)

	return scanUser(row)
}

// GetByUsername retrieves a user by their username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db := getDB(ctx, r.pool)

	row := db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE username = $1`, username)

	return scanUser(row)
}

// GetByIdentifier retrieves a user by email or username.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	db := getDB(ctx, r.pool)

	row := db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE LOWER(email) = LOWER($1) OR username = $1`, identifier)

	return scanUser(row)
}

// UpdateUsername changes the username; the unique constraint rejects taken
// names.
func (r *UserRepository) UpdateUsername(ctx context.Context, id uuid.UUID, username string) error {
	db := getDB(ctx, r.pool)

	return withRetry(ctx, func() error {
		result, err := db.Exec(ctx, `
			UPDATE users SET username = $2, updated_at = $3 WHERE id = $1`,
			id, username, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("update username: %w", err)
		}
		if result.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	db := getDB(ctx, r.pool)

	return withRetry(ctx, func() error {
		result, err := db.Exec(ctx, `
			UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
			id, passwordHash, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if result.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// MarkEmailVerified flags the account's email as verified. Idempotent.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	db := getDB(ctx, r.pool)

	return withRetry(ctx, func() error {
		result, err := db.Exec(ctx, `
			UPDATE users SET email_verified = TRUE, updated_at = $2 WHERE id = $1`,
			id, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("mark email verified: %w", err)
		}
		if result.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var provider string

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.Name,
		&u.PasswordHash,
		&provider,
		&u.Image,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Provider = domain.Provider(provider)
	return &u, nil
}

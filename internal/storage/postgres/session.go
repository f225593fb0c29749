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

// SessionRepository implements storage.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new refresh-token session.
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	db := getDB(ctx, r.pool)

	return withRetry(ctx, func() error {
		_, err := db.Exec(ctx, `
			INSERT INTO sessions (
				id, user_id, token_hash, expires_at, created_at,
				ip_address, user_agent
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			session.ID,
			session.UserID,
			session.TokenHash,
			session.ExpiresAt,
			session.CreatedAt,
			session.IPAddress,
			session.UserAgent,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// GetByHash retrieves a session by token hash.
func (r *SessionRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	db := getDB(ctx, r.pool)

	row := db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at,
		       ip_address, user_agent
		FROM sessions WHERE token_hash = $1`, tokenHash)

	var s domain.Session
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TokenHash,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.RevokedAt,
		&s.IPAddress,
		&s.UserAgent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &s, nil
}

// Revoke marks one session as revoked.
func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	db := getDB(ctx, r.pool)

	result, err := db.Exec(ctx, `
		UPDATE sessions SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RevokeAllForUser revokes every active session of one user.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	db := getDB(ctx, r.pool)

	_, err := db.Exec(ctx, `
		UPDATE sessions SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke sessions for user: %w", err)
	}
	return nil
}

// DeleteExpired removes expired and revoked sessions.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	db := getDB(ctx, r.pool)

	result, err := db.Exec(ctx, `
		DELETE FROM sessions
		WHERE expires_at < NOW() OR revoked_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

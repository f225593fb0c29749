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

// VerificationRepository implements storage.VerificationRepository using
// PostgreSQL.
type VerificationRepository struct {
	pool *pgxpool.Pool
}

// NewVerificationRepository creates a new verification repository.
func NewVerificationRepository(pool *pgxpool.Pool) *VerificationRepository {
	return &VerificationRepository{pool: pool}
}

// Create stores a verification secret hash.
func (r *VerificationRepository) Create(ctx context.Context, v *domain.Verification) error {
	db := getDB(ctx, r.pool)

	return withRetry(ctx, func() error {
		_, err := db.Exec(ctx, `
			INSERT INTO verifications (
				id, user_id, purpose, value_hash, expires_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6)`,
			v.ID,
			v.UserID,
			string(v.Purpose),
			v.ValueHash,
			v.ExpiresAt,
			v.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert verification: %w", err)
		}
		return nil
	})
}

// GetActive retrieves the newest usable verification for a user and purpose.
func (r *VerificationRepository) GetActive(ctx context.Context, userID uuid.UUID, purpose domain.VerificationPurpose) (*domain.Verification, error) {
	db := getDB(ctx, r.pool)

	row := db.QueryRow(ctx, `
		SELECT id, user_id, purpose, value_hash, expires_at, created_at, consumed_at
		FROM verifications
		WHERE user_id = $1 AND purpose = $2
		  AND consumed_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1`, userID, string(purpose))

	return scanVerification(row)
}

// GetActiveByHash retrieves a usable verification by value hash.
func (r *VerificationRepository) GetActiveByHash(ctx context.Context, purpose domain.VerificationPurpose, valueHash string) (*domain.Verification, error) {
	db := getDB(ctx, r.pool)

	row := db.QueryRow(ctx, `
		SELECT id, user_id, purpose, value_hash, expires_at, created_at, consumed_at
		FROM verifications
		WHERE purpose = $1 AND value_hash = $2
		  AND consumed_at IS NULL AND expires_at > NOW()`,
		string(purpose), valueHash)

	return scanVerification(row)
}

// Consume marks a verification as used.
func (r *VerificationRepository) Consume(ctx context.Context, id uuid.UUID) error {
	db := getDB(ctx, r.pool)

	result, err := db.Exec(ctx, `
		UPDATE verifications SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("consume verification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteExpired removes expired and consumed verifications.
func (r *VerificationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	db := getDB(ctx, r.pool)

	result, err := db.Exec(ctx, `
		DELETE FROM verifications
		WHERE expires_at < NOW() OR consumed_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("delete expired verifications: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanVerification(row pgx.Row) (*domain.Verification, error) {
	var v domain.Verification
	var purpose string

	err := row.Scan(
		&v.ID,
		&v.UserID,
		&purpose,
		&v.ValueHash,
		&v.ExpiresAt,
		&v.CreatedAt,
		&v.ConsumedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification: %w", err)
	}

	v.Purpose = domain.VerificationPurpose(purpose)
	return &v, nil
}

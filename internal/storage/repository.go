// Package storage defines the repository interfaces for data persistence.
//
// These interfaces keep the business logic independent of the storage
// implementation; services are tested against in-memory fakes.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/anivouch/anivouch/internal/domain"
)

// UserRepository defines the operations for user persistence.
type UserRepository interface {
	// Create stores a new user. A taken email or username surfaces as the
	// database's unique-violation error, classified at the boundary.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by email. Returns ErrNotFound if not found.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByUsername retrieves a user by username. Returns ErrNotFound if not found.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByIdentifier retrieves a user by email or username.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)

	// UpdateUsername changes the username. Uniqueness is enforced by the
	// database constraint.
	UpdateUsername(ctx context.Context, id uuid.UUID, username string) error

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// MarkEmailVerified flags the account's email as verified.
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
}

// SessionRepository defines operations for refresh-token persistence.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error

	// GetByHash retrieves a session by token hash. Returns ErrNotFound if
	// no such session exists.
	GetByHash(ctx context.Context, tokenHash string) (*domain.Session, error)

	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error

	// DeleteExpired removes expired and revoked sessions, returning the
	// number deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}

// VerificationRepository defines operations for email-verification tokens
// and password-reset OTPs.
type VerificationRepository interface {
	Create(ctx context.Context, v *domain.Verification) error

	// GetActive retrieves the newest unconsumed, unexpired verification for
	// the user and purpose. Returns ErrNotFound when none exists.
	GetActive(ctx context.Context, userID uuid.UUID, purpose domain.VerificationPurpose) (*domain.Verification, error)

	// GetActiveByHash retrieves an unconsumed, unexpired verification by its
	// value hash, used for mailed link tokens where no session is present.
	GetActiveByHash(ctx context.Context, purpose domain.VerificationPurpose, valueHash string) (*domain.Verification, error)

	// Consume marks a verification as used.
	Consume(ctx context.Context, id uuid.UUID) error

	// DeleteExpired removes expired and consumed verifications.
	DeleteExpired(ctx context.Context) (int64, error)
}

// Repositories bundles every repository backed by one database.
type Repositories struct {
	Users         UserRepository
	Sessions      SessionRepository
	Verifications VerificationRepository
}

// Transactor executes a function within a database transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

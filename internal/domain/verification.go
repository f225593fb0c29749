package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationPurpose distinguishes what a stored verification value proves.
type VerificationPurpose string

const (
	// PurposeEmailVerify is a long random token mailed as a link.
	PurposeEmailVerify VerificationPurpose = "email-verify"
	// PurposePasswordReset is a short one-time code mailed as text.
	PurposePasswordReset VerificationPurpose = "password-reset"
)

// Verification is a single-use, expiring secret issued to a user: either an
// email-verification token or a password-reset OTP. Only the hash of the
// secret is stored.
type Verification struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Purpose    VerificationPurpose
	ValueHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	ConsumedAt *time.Time
}

// NewVerification builds a verification record for an already-hashed value.
func NewVerification(userID uuid.UUID, purpose VerificationPurpose, valueHash string, ttl time.Duration) *Verification {
	now := time.Now().UTC()
	return &Verification{
		ID:        uuid.New(),
		UserID:    userID,
		Purpose:   purpose,
		ValueHash: valueHash,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func (v *Verification) IsExpired() bool {
	return time.Now().UTC().After(v.ExpiresAt)
}

func (v *Verification) IsConsumed() bool {
	return v.ConsumedAt != nil
}

func (v *Verification) IsUsable() bool {
	return !v.IsExpired() && !v.IsConsumed()
}

// Consume marks the verification as used.
func (v *Verification) Consume() {
	if v.ConsumedAt == nil {
		now := time.Now().UTC()
		v.ConsumedAt = &now
	}
}

package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// Session is a stored refresh-token record, used for token rotation.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // hash of the raw token, never the token itself
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time

	IPAddress string
	UserAgent string
}

func (s *Session) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

func (s *Session) IsValid() bool {
	return !s.IsExpired() && !s.IsRevoked()
}

// Revoke marks the session as revoked.
func (s *Session) Revoke() {
	if s.RevokedAt == nil {
		now := time.Now().UTC()
		s.RevokedAt = &now
	}
}

// GenerateTokenString generates a cryptographically secure random token
// string. This is the raw token sent to the client.
func GenerateTokenString() (string, error) {
	bytes := make([]byte, 32) // 256 bits of entropy
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// TokenPair represents an access token and refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds until the access token expires
}

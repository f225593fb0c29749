// Package auth provides authentication utilities: password hashing, JWT
// session tokens, one-time codes, and the Google sign-in flow.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Password hashing cost. 12 is a good balance between security and performance.
const bcryptCost = 12

// ErrInvalidPassword is returned when password validation fails.
var ErrInvalidPassword = errors.New("invalid password")

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword verifies a password against its hash.
func CheckPassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return err
	}
	return nil
}

// ValidatePasswordStrength checks if a password meets the account rules.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return errors.New("Password must be at least 8 characters long")
	}
	if len(password) > 50 {
		return errors.New("Password must not exceed 50 character limit")
	}
	return nil
}

// HashToken returns the hex-encoded SHA-256 of a raw token. Refresh tokens
// and verification secrets are stored hashed, never raw.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

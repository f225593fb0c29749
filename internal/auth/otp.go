package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

// OTP codes are 6 decimal digits, mailed to the user during password reset.
const otpDigits = 6

// GenerateOTP returns a uniformly random 6-digit code, zero-padded.
func GenerateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

// VerifyOTPHash compares a candidate code against a stored hash in constant
// time.
func VerifyOTPHash(candidate, storedHash string) bool {
	candidateHash := HashToken(candidate)
	return subtle.ConstantTimeCompare([]byte(candidateHash), []byte(storedHash)) == 1
}

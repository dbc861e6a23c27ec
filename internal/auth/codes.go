package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewResetCode returns a random 6-digit code and its stored hash.
func NewResetCode() (code, hash string, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate reset code: %w", err)
	}
	code = fmt.Sprintf("%06d", n.Int64()+100000)
	return code, HashResetCode(code), nil
}

// HashResetCode is the sha256 hex digest stored instead of the code.
func HashResetCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// NewCSRFToken returns a random token for the double-submit cookie.
func NewCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

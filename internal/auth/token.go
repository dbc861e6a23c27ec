package auth

import (
	"errors"
	"fmt"
	"time"

	"shop-service/internal/apperr"

	"github.com/golang-jwt/jwt/v4"
)

// Claims are carried by every bearer token.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for userID.
func (t *TokenIssuer) Issue(userID string) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature and expiry. Every failure is Unauthorized.
func (t *TokenIssuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthorized("Your token has expired. Please log in again.")
		}
		return nil, apperr.Unauthorized("Please log in again.")
	}
	if claims.UserID == "" {
		return nil, apperr.Unauthorized("Please log in again.")
	}
	return claims, nil
}

// ChangedPasswordAfter reports whether the password changed after the token
// was issued. Compared at second precision like the token itself.
func ChangedPasswordAfter(changedAt *time.Time, claims *Claims) bool {
	if changedAt == nil || claims.IssuedAt == nil {
		return false
	}
	return changedAt.Unix() > claims.IssuedAt.Unix()
}

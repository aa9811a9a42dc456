// Package auth issues and verifies the bearer tokens that gate the admin
// batch surface. Tokens are HS256 JWTs carrying the identity's email and
// role; verification is stateless.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cohort/internal/identity"
)

// Claims is the JWT payload.
type Claims struct {
	Email string        `json:"email"`
	Role  identity.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs access tokens for authenticated identities.
type Tokens struct {
	issuer string
	key    []byte
	ttl    time.Duration
}

// NewTokens creates a token signer.
func NewTokens(issuer, signingKey string, ttl time.Duration) *Tokens {
	return &Tokens{issuer: issuer, key: []byte(signingKey), ttl: ttl}
}

// Issue signs a token for the identity.
func (t *Tokens) Issue(email string, role identity.Role) (string, time.Time, error) {
	exp := time.Now().Add(t.ttl)
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates a token string and returns its claims.
func (t *Tokens) Parse(tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.key, nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if t.issuer != "" && claims.Issuer != t.issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}

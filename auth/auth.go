// Package auth mints and verifies the bearer tokens used for
// service-to-service calls made by the Indexer's sinks and the Remote
// pipeline stage.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer mints and verifies HMAC-signed bearer tokens scoped to a
// subject (e.g. a pipeline name) with a bounded lifetime.
type Signer struct {
	key []byte
	ttl time.Duration
}

// NewSigner returns a Signer using key to sign and verify tokens, each
// valid for ttl from the moment they're minted.
func NewSigner(key []byte, ttl time.Duration) *Signer {
	return &Signer{key: key, ttl: ttl}
}

// claims is the token body: a subject plus the standard registered
// expiry/issued-at claims.
type claims struct {
	jwt.RegisteredClaims
}

// Mint returns a signed token asserting subject, expiring after the
// Signer's configured ttl.
func (s *Signer) Mint(subject string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its subject.
func (s *Signer) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("auth: verifying token: %w", err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("auth: token claims invalid")
	}
	return c.Subject, nil
}

package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/esig/task-manager/internal/core/domain"
)

// MinSecretBytes is the shortest HMAC key accepted for HS256.
const MinSecretBytes = 32

// TokenCodec issues and verifies HS256 bearer tokens whose subject is a username.
// The secret and TTL are fixed at construction and never change.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenCodec returns a codec signing with secret. A ttl of zero or less
// produces tokens that are already expired when issued.
func NewTokenCodec(secret []byte, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("token secret must be at least %d bytes, got %d", MinSecretBytes, len(secret))
	}
	c := &TokenCodec{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue signs a token for username valid from now until now+TTL.
func (c *TokenCodec) Issue(username string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify reports whether token is authentic and unexpired, returning its subject.
func (c *TokenCodec) Verify(token string) (string, bool) {
	sub, err := c.ExtractSubject(token)
	if err != nil {
		return "", false
	}
	return sub, true
}

// ExtractSubject returns the subject of a valid token. Expired tokens yield
// domain.ErrExpiredToken; every other rejection yields domain.ErrInvalidToken.
func (c *TokenCodec) ExtractSubject(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", domain.ErrExpiredToken
	case err != nil, parsed == nil, !parsed.Valid:
		return "", domain.ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", domain.ErrInvalidToken
	}
	return claims.Subject, nil
}

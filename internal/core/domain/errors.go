package domain

import (
	"errors"
	"fmt"
)

// Authentication errors.
var (
	ErrBadCredentials    = errors.New("bad credentials")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrInvalidToken      = errors.New("invalid token")
	ErrUnknownIdentity   = errors.New("token subject has no account")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrTooManyAttempts   = errors.New("too many failed login attempts")
)

// ErrExpiredToken wraps ErrInvalidToken so callers that only care about
// rejection can match on either.
var ErrExpiredToken = fmt.Errorf("token expired: %w", ErrInvalidToken)

// Authorization errors.
var (
	ErrForbidden    = errors.New("access forbidden")
	ErrUnknownOwner = errors.New("target owner does not exist")
)

// Lookup and input errors.
var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidInput    = errors.New("invalid input")
)

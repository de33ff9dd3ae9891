package ports

import (
	"context"

	"github.com/esig/task-manager/internal/core/domain"
)

// TokenTypeBearer is the token type reported to clients.
const TokenTypeBearer = "Bearer"

// AuthResult is returned by every operation that issues a token.
type AuthResult struct {
	Token     string
	TokenType string
	Role      domain.Role
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*AuthResult, error)
	Register(ctx context.Context, username, password string) (*AuthResult, error)
	CreateAdmin(ctx context.Context, caller *domain.Principal, username, password string) (*AuthResult, error)
}

// IdentityResolver maps a verified token subject to a principal.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, username string) (*domain.Principal, error)
}

// TokenVerifier checks a compact token and yields its subject.
type TokenVerifier interface {
	ExtractSubject(token string) (string, error)
}

// LoginThrottle tracks failed logins per username.
type LoginThrottle interface {
	// Blocked reports whether further attempts for username must be refused.
	Blocked(ctx context.Context, username string) (bool, error)
	RecordFailure(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/ports"
	"github.com/esig/task-manager/internal/pkg/metrics"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// dummyHash is compared against when the username is unknown so that a
// missing account costs the same bcrypt work as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// AuthService implements login, self-registration and admin creation.
type AuthService struct {
	accounts ports.AccountRepository
	tokens   *TokenCodec
	throttle ports.LoginThrottle
	audit    ports.AuditRecorder
	logger   zerolog.Logger
	now      func() time.Time
	cost     int
}

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithLoginThrottle enables lockout after repeated failures.
func WithLoginThrottle(t ports.LoginThrottle) AuthOption {
	return func(s *AuthService) { s.throttle = t }
}

// WithAuditRecorder routes security events to r.
func WithAuditRecorder(r ports.AuditRecorder) AuthOption {
	return func(s *AuthService) { s.audit = r }
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.cost = cost }
}

func NewAuthService(accounts ports.AccountRepository, tokens *TokenCodec, logger zerolog.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		accounts: accounts,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies credentials and issues a token. An unknown username and a
// wrong password both return domain.ErrBadCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.AuthResult, error) {
	if s.throttled(ctx, username) {
		metrics.LoginAttemptsTotal.WithLabelValues("throttled").Inc()
		s.record(domain.AuditLoginThrottled, username, "", "refused")
		return nil, domain.ErrTooManyAttempts
	}

	account, err := s.accounts.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, s.loginFailed(ctx, username)
	case err != nil:
		return nil, fmt.Errorf("login lookup: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, s.loginFailed(ctx, username)
	}

	token, err := s.tokens.Issue(account.Username)
	if err != nil {
		return nil, err
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, username); err != nil {
			s.logger.Warn().Err(err).Msg("login throttle reset failed")
		}
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.record(domain.AuditLoginSucceeded, username, "", "ok")
	s.logger.Info().Str("username", username).Msg("login succeeded")

	return &ports.AuthResult{Token: token, TokenType: ports.TokenTypeBearer, Role: account.Role}, nil
}

// Register creates a USER account and logs it in.
func (s *AuthService) Register(ctx context.Context, username, password string) (*ports.AuthResult, error) {
	res, err := s.createAccount(ctx, username, password, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	s.record(domain.AuditRegistered, username, "", "ok")
	return res, nil
}

// CreateAdmin creates an ADMIN account. Only an admin caller may do so.
func (s *AuthService) CreateAdmin(ctx context.Context, caller *domain.Principal, username, password string) (*ports.AuthResult, error) {
	if !caller.IsAdmin() {
		actor := ""
		if caller != nil {
			actor = caller.Username
		}
		metrics.AccessDeniedTotal.WithLabelValues("create_admin").Inc()
		s.record(domain.AuditAccessDenied, actor, username, "create_admin")
		return nil, domain.ErrForbidden
	}

	res, err := s.createAccount(ctx, username, password, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("username", username).Str("created_by", caller.Username).Msg("admin account created")
	s.record(domain.AuditAdminCreated, caller.Username, username, "ok")
	return res, nil
}

// SeedAdmin creates the bootstrap admin when no account named username exists.
// It reports whether an account was created.
func (s *AuthService) SeedAdmin(ctx context.Context, username, password string) (bool, error) {
	_, err := s.accounts.FindByUsername(ctx, username)
	if err == nil {
		s.logger.Info().Str("username", username).Msg("bootstrap admin already present")
		return false, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return false, fmt.Errorf("seed admin lookup: %w", err)
	}

	if _, err := s.createAccount(ctx, username, password, domain.RoleAdmin); err != nil {
		// Another instance may have seeded concurrently.
		if errors.Is(err, domain.ErrDuplicateUsername) {
			return false, nil
		}
		return false, err
	}
	s.logger.Info().Str("username", username).Msg("bootstrap admin created")
	return true, nil
}

func (s *AuthService) createAccount(ctx context.Context, username, password string, role domain.Role) (*ports.AuthResult, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}
	// bcrypt's limit is in bytes, not characters.
	if len(password) > maxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	created, err := s.accounts.Create(ctx, &domain.Account{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(created.Username)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("username", created.Username).Str("role", string(role)).Msg("account created")

	return &ports.AuthResult{Token: token, TokenType: ports.TokenTypeBearer, Role: created.Role}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, username string) error {
	if s.throttle != nil {
		if err := s.throttle.RecordFailure(ctx, username); err != nil {
			s.logger.Warn().Err(err).Msg("login throttle record failed")
		}
	}
	metrics.LoginAttemptsTotal.WithLabelValues("bad_credentials").Inc()
	s.record(domain.AuditLoginFailed, username, "", "bad_credentials")
	s.logger.Warn().Str("username", username).Msg("login failed")
	return domain.ErrBadCredentials
}

// throttled fails open: a broken throttle backend never blocks logins.
func (s *AuthService) throttled(ctx context.Context, username string) bool {
	if s.throttle == nil {
		return false
	}
	blocked, err := s.throttle.Blocked(ctx, username)
	if err != nil {
		s.logger.Warn().Err(err).Msg("login throttle check failed")
		return false
	}
	return blocked
}

func (s *AuthService) record(t domain.AuditType, actor, target, outcome string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(domain.AuditEvent{Type: t, Actor: actor, Target: target, Outcome: outcome, At: s.now().UTC()})
}

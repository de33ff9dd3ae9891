package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/ports"
	"github.com/esig/task-manager/internal/pkg/metrics"
)

// FilterOutcome classifies what the auth filter found on a request.
type FilterOutcome int

const (
	OutcomePublic FilterOutcome = iota
	OutcomeNoToken
	OutcomeInvalidToken
	OutcomeUnknownUser
	OutcomeAuthenticated
)

func (o FilterOutcome) String() string {
	switch o {
	case OutcomePublic:
		return "public"
	case OutcomeNoToken:
		return "no_token"
	case OutcomeInvalidToken:
		return "invalid_token"
	case OutcomeUnknownUser:
		return "unknown_user"
	case OutcomeAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

const bearerPrefix = "Bearer "

// principalKey is the echo context key holding the request's *domain.Principal.
const principalKey = "auth.principal"

// DefaultPublicPrefixes are the paths served without authentication.
var DefaultPublicPrefixes = []string{
	"/auth/login",
	"/auth/register",
	"/swagger",
	"/health",
	"/metrics",
	"/favicon.ico",
}

// AuthFilter resolves the caller of a request from its bearer token.
// It never rejects a request; enforcement is left to RequireAuth.
type AuthFilter struct {
	tokens   ports.TokenVerifier
	resolver ports.IdentityResolver
	public   []string
	log      zerolog.Logger
}

func NewAuthFilter(tokens ports.TokenVerifier, resolver ports.IdentityResolver, publicPrefixes []string, log zerolog.Logger) *AuthFilter {
	return &AuthFilter{
		tokens:   tokens,
		resolver: resolver,
		public:   append([]string(nil), publicPrefixes...),
		log:      log,
	}
}

// Resolve runs the filter steps for one request: public path check, bearer
// extraction, token verification, identity lookup. A principal is returned
// only with OutcomeAuthenticated.
func (f *AuthFilter) Resolve(ctx context.Context, path, authorization string) (FilterOutcome, *domain.Principal) {
	if f.isPublic(path) {
		return OutcomePublic, nil
	}

	token, ok := strings.CutPrefix(authorization, bearerPrefix)
	if !ok || token == "" {
		return OutcomeNoToken, nil
	}

	username, err := f.tokens.ExtractSubject(token)
	if err != nil {
		f.log.Warn().Err(err).Str("path", path).Msg("rejected bearer token")
		return OutcomeInvalidToken, nil
	}

	principal, err := f.resolver.ResolveIdentity(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrUnknownIdentity) {
			f.log.Error().Err(err).Str("username", username).Msg("identity lookup failed")
		}
		return OutcomeUnknownUser, nil
	}
	return OutcomeAuthenticated, principal
}

// Authenticate adapts the filter to echo. The resolved principal, if any, is
// stored on the request's own context and the chain always continues.
func (f *AuthFilter) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			outcome, principal := f.Resolve(req.Context(), req.URL.Path, req.Header.Get(echo.HeaderAuthorization))
			metrics.TokenFilterOutcomesTotal.WithLabelValues(outcome.String()).Inc()
			if principal != nil {
				c.Set(principalKey, principal)
			}
			return next(c)
		}
	}
}

func (f *AuthFilter) isPublic(path string) bool {
	for _, prefix := range f.public {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// PrincipalFrom returns the principal the filter attached to c.
func PrincipalFrom(c echo.Context) (*domain.Principal, bool) {
	p, ok := c.Get(principalKey).(*domain.Principal)
	return p, ok && p != nil
}

// WithPrincipal attaches p to c. Tests use it to bypass the filter.
func WithPrincipal(c echo.Context, p *domain.Principal) {
	c.Set(principalKey, p)
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/service"
)

type stubResolver struct {
	accounts map[string]*domain.Principal
	err      error
	calls    int
}

func (r *stubResolver) ResolveIdentity(_ context.Context, username string) (*domain.Principal, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.accounts[username]
	if !ok {
		return nil, domain.ErrUnknownIdentity
	}
	return p, nil
}

func newFilter(t *testing.T, resolver *stubResolver) (*AuthFilter, *service.TokenCodec) {
	t.Helper()
	codec, err := service.NewTokenCodec([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return NewAuthFilter(codec, resolver, DefaultPublicPrefixes, zerolog.Nop()), codec
}

func TestAuthFilter_Resolve(t *testing.T) {
	alice := &domain.Principal{AccountID: "a", Username: "alice", Role: domain.RoleUser}
	resolver := &stubResolver{accounts: map[string]*domain.Principal{"alice": alice}}
	filter, codec := newFilter(t, resolver)

	aliceToken, _ := codec.Issue("alice")
	ghostToken, _ := codec.Issue("ghost")

	cases := []struct {
		name   string
		path   string
		header string
		want   FilterOutcome
	}{
		{"login is public", "/auth/login", "", OutcomePublic},
		{"public ignores token", "/swagger/index.html", "Bearer " + aliceToken, OutcomePublic},
		{"health is public", "/health/ready", "", OutcomePublic},
		{"missing header", "/tasks", "", OutcomeNoToken},
		{"other scheme", "/tasks", "Basic YWxpY2U6cHc=", OutcomeNoToken},
		{"lowercase bearer", "/tasks", "bearer " + aliceToken, OutcomeNoToken},
		{"empty bearer", "/tasks", "Bearer ", OutcomeNoToken},
		{"garbage token", "/tasks", "Bearer not-a-token", OutcomeInvalidToken},
		{"unknown user", "/tasks", "Bearer " + ghostToken, OutcomeUnknownUser},
		{"valid", "/tasks", "Bearer " + aliceToken, OutcomeAuthenticated},
		{"create-admin is protected", "/auth/create-admin", "", OutcomeNoToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, p := filter.Resolve(context.Background(), tc.path, tc.header)
			if got != tc.want {
				t.Fatalf("outcome = %s, want %s", got, tc.want)
			}
			if (p != nil) != (tc.want == OutcomeAuthenticated) {
				t.Fatalf("principal presence mismatch: %+v", p)
			}
		})
	}
}

func TestAuthFilter_PublicPathSkipsLookup(t *testing.T) {
	resolver := &stubResolver{}
	filter, codec := newFilter(t, resolver)
	token, _ := codec.Issue("alice")

	filter.Resolve(context.Background(), "/auth/register", "Bearer "+token)
	if resolver.calls != 0 {
		t.Fatalf("identity must not be resolved on public paths")
	}
}

func TestAuthFilter_ResolverErrorTreatedAsUnknown(t *testing.T) {
	resolver := &stubResolver{err: errors.New("db down")}
	filter, codec := newFilter(t, resolver)
	token, _ := codec.Issue("alice")

	got, p := filter.Resolve(context.Background(), "/tasks", "Bearer "+token)
	if got != OutcomeUnknownUser || p != nil {
		t.Fatalf("got %s %+v", got, p)
	}
}

func TestAuthenticate_FailsOpen(t *testing.T) {
	filter, _ := newFilter(t, &stubResolver{})
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := filter.Authenticate()(func(c echo.Context) error {
		called = true
		if _, ok := PrincipalFrom(c); ok {
			t.Fatalf("no principal expected for a forged token")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("request should continue unauthenticated: called=%v code=%d", called, rec.Code)
	}
}

func TestAuthenticate_AttachesPrincipal(t *testing.T) {
	alice := &domain.Principal{AccountID: "a", Username: "alice", Role: domain.RoleUser}
	filter, codec := newFilter(t, &stubResolver{accounts: map[string]*domain.Principal{"alice": alice}})
	token, _ := codec.Issue("alice")
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := filter.Authenticate()(func(c echo.Context) error {
		p, ok := PrincipalFrom(c)
		if !ok || p.Username != "alice" {
			t.Fatalf("principal not attached: %+v", p)
		}
		return nil
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestRequireAuth(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequireAuth()(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	WithPrincipal(c, &domain.Principal{Username: "alice", Role: domain.RoleUser})
	called := false
	handler = RequireAuth()(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("authenticated request should pass")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/ports"
)

// IdentityResolver turns a verified token subject into a Principal by
// looking the account up on every request, so role changes and deletions
// take effect without reissuing tokens.
type IdentityResolver struct {
	accounts ports.AccountRepository
}

func NewIdentityResolver(accounts ports.AccountRepository) *IdentityResolver {
	return &IdentityResolver{accounts: accounts}
}

// ResolveIdentity returns domain.ErrUnknownIdentity when username has no account.
func (r *IdentityResolver) ResolveIdentity(ctx context.Context, username string) (*domain.Principal, error) {
	account, err := r.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrUnknownIdentity
		}
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	return domain.NewPrincipal(account), nil
}

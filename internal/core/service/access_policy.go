package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/ports"
)

// AccessPolicy decides what a principal may do with a task.
// ADMIN may act on every task; anyone else only on tasks they own.
type AccessPolicy struct {
	accounts ports.AccountRepository
}

func NewAccessPolicy(accounts ports.AccountRepository) *AccessPolicy {
	return &AccessPolicy{accounts: accounts}
}

// CanAccess reports whether p may read or modify task.
func (ap *AccessPolicy) CanAccess(p *domain.Principal, task *domain.Task) bool {
	if p == nil || task == nil {
		return false
	}
	return p.IsAdmin() || task.OwnerID == p.AccountID
}

// Authorize returns domain.ErrForbidden when CanAccess is false.
func (ap *AccessPolicy) Authorize(p *domain.Principal, task *domain.Task) error {
	if !ap.CanAccess(p, task) {
		return domain.ErrForbidden
	}
	return nil
}

// ScopeForList returns the set of tasks p may list.
func (ap *AccessPolicy) ScopeForList(p *domain.Principal) domain.Scope {
	if p == nil {
		return domain.Scope{}
	}
	if p.IsAdmin() {
		return domain.ScopeAll()
	}
	return domain.ScopeOwnedBy(p.AccountID)
}

// ResolveTargetOwner picks the owner of a task being created or updated.
// An admin naming an owner gets that owner, which must exist. In every other
// case, including a non-admin naming someone, fallback is returned.
func (ap *AccessPolicy) ResolveTargetOwner(ctx context.Context, p *domain.Principal, requested *string, fallback string) (string, error) {
	if !p.IsAdmin() || requested == nil || *requested == "" {
		return fallback, nil
	}
	account, err := ap.accounts.FindByID(ctx, *requested)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return "", domain.ErrUnknownOwner
		}
		return "", fmt.Errorf("resolve owner: %w", err)
	}
	return account.ID, nil
}

package ports

import (
	"context"

	"github.com/esig/task-manager/internal/core/domain"
)

// AccountRepository persists accounts.
type AccountRepository interface {
	// Create inserts a new account and returns it with its ID populated.
	// Uniqueness of the username is enforced atomically by the store; a
	// conflicting insert returns domain.ErrDuplicateUsername.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	// FindByUsername returns domain.ErrAccountNotFound when no account matches.
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	// FindByID returns domain.ErrAccountNotFound when no account matches.
	FindByID(ctx context.Context, id string) (*domain.Account, error)
}

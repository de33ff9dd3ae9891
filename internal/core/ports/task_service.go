package ports

import (
	"context"
	"time"

	"github.com/esig/task-manager/internal/core/domain"
)

// TaskInput carries the fields of a create or full update.
type TaskInput struct {
	Title       string
	Description string
	Responsible string
	Priority    domain.Priority
	Deadline    *time.Time
	Status      domain.TaskStatus
	// OwnerID is honoured only for admins; it is ignored for everyone else.
	OwnerID *string
}

// TaskQuery holds the optional predicates of the filter endpoint.
type TaskQuery struct {
	Status      domain.TaskStatus
	Priority    domain.Priority
	Responsible string
	StartDate   *time.Time
	EndDate     *time.Time
}

// TaskView is a task together with a summary of its owner.
type TaskView struct {
	Task  *domain.Task
	Owner domain.AccountSummary
}

// TaskService exposes task operations. Every call takes the caller's
// principal explicitly.
type TaskService interface {
	List(ctx context.Context, caller *domain.Principal) ([]TaskView, error)
	Get(ctx context.Context, caller *domain.Principal, id string) (*TaskView, error)
	Create(ctx context.Context, caller *domain.Principal, in TaskInput) (*TaskView, error)
	Update(ctx context.Context, caller *domain.Principal, id string, in TaskInput) (*TaskView, error)
	Patch(ctx context.Context, caller *domain.Principal, id string, patch domain.TaskPatch) (*TaskView, error)
	Delete(ctx context.Context, caller *domain.Principal, id string) error
	Complete(ctx context.Context, caller *domain.Principal, id string) (*TaskView, error)
	ListByStatus(ctx context.Context, caller *domain.Principal, status domain.TaskStatus) ([]TaskView, error)
	ListByPriority(ctx context.Context, caller *domain.Principal, priority domain.Priority) ([]TaskView, error)
	ListByOwner(ctx context.Context, caller *domain.Principal, ownerID string) ([]TaskView, error)
	Filter(ctx context.Context, caller *domain.Principal, q TaskQuery) ([]TaskView, error)
	Overdue(ctx context.Context, caller *domain.Principal) ([]TaskView, error)
	Upcoming(ctx context.Context, caller *domain.Principal) ([]TaskView, error)
}

package ports

import (
	"context"
	"strings"
	"time"

	"github.com/esig/task-manager/internal/core/domain"
)

// TaskFilter carries the predicates of a task query.
// Scope is mandatory and always applied before the optional predicates.
type TaskFilter struct {
	Scope          domain.Scope
	Status         domain.TaskStatus // optional: exact match
	ExcludeStatus  domain.TaskStatus // optional: status != ExcludeStatus
	Priority       domain.Priority   // optional: exact match
	Responsible    string            // optional: case-insensitive substring
	DeadlineFrom   *time.Time        // optional: deadline >= DeadlineFrom
	DeadlineTo     *time.Time        // optional: deadline <= DeadlineTo
	DeadlineBefore *time.Time        // optional: deadline < DeadlineBefore
}

// TaskRepository persists tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	// FindByID returns domain.ErrTaskNotFound when no task matches.
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
	// List returns the tasks matching filter ordered by creation time.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)
}

// Matches evaluates f against a single task in memory. Stores that cannot
// push the predicates down to a query engine use it directly.
func (f TaskFilter) Matches(t *domain.Task) bool {
	if !f.Scope.Admits(t.OwnerID) {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.ExcludeStatus != "" && t.Status == f.ExcludeStatus {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Responsible != "" && !strings.Contains(strings.ToLower(t.Responsible), strings.ToLower(f.Responsible)) {
		return false
	}
	if f.DeadlineFrom != nil && (t.Deadline == nil || t.Deadline.Before(*f.DeadlineFrom)) {
		return false
	}
	if f.DeadlineTo != nil && (t.Deadline == nil || t.Deadline.After(*f.DeadlineTo)) {
		return false
	}
	if f.DeadlineBefore != nil && (t.Deadline == nil || !t.Deadline.Before(*f.DeadlineBefore)) {
		return false
	}
	return true
}

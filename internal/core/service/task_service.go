package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/ports"
	"github.com/esig/task-manager/internal/pkg/metrics"
)

// upcomingWindow is how far ahead Upcoming looks, inclusive of both ends.
const upcomingWindow = 7 * 24 * time.Hour

type taskService struct {
	tasks    ports.TaskRepository
	accounts ports.AccountRepository
	policy   *AccessPolicy
	audit    ports.AuditRecorder
	log      zerolog.Logger
	now      func() time.Time
}

// TaskServiceOption customises the task service.
type TaskServiceOption func(*taskService)

// WithClock replaces the wall clock used for timestamps and date windows.
func WithClock(now func() time.Time) TaskServiceOption {
	return func(s *taskService) { s.now = now }
}

// WithTaskAudit routes access denials and deletions to r.
func WithTaskAudit(r ports.AuditRecorder) TaskServiceOption {
	return func(s *taskService) { s.audit = r }
}

// NewTaskService returns a TaskService that gates every operation through policy.
func NewTaskService(
	tasks ports.TaskRepository,
	accounts ports.AccountRepository,
	policy *AccessPolicy,
	log zerolog.Logger,
	opts ...TaskServiceOption,
) ports.TaskService {
	s := &taskService{
		tasks:    tasks,
		accounts: accounts,
		policy:   policy,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *taskService) List(ctx context.Context, caller *domain.Principal) ([]ports.TaskView, error) {
	return s.list(ctx, caller, ports.TaskFilter{})
}

func (s *taskService) Get(ctx context.Context, caller *domain.Principal, id string) (*ports.TaskView, error) {
	task, err := s.load(ctx, caller, id, "get")
	if err != nil {
		return nil, err
	}
	return s.view(ctx, task)
}

func (s *taskService) Create(ctx context.Context, caller *domain.Principal, in ports.TaskInput) (*ports.TaskView, error) {
	if caller == nil {
		return nil, domain.ErrUnauthenticated
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	owner, err := s.policy.ResolveTargetOwner(ctx, caller, in.OwnerID, caller.AccountID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &domain.Task{OwnerID: owner, CreatedAt: now, UpdatedAt: now}
	assignInput(task, in)

	created, err := s.tasks.Create(ctx, task)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create task")
		return nil, fmt.Errorf("create task: %w", err)
	}

	metrics.TasksCreatedTotal.WithLabelValues(string(created.Priority)).Inc()
	s.log.Info().Str("task_id", created.ID).Str("owner_id", owner).Str("by", caller.Username).Msg("task created")
	return s.view(ctx, created)
}

// Update replaces every field of the task. The owner stays unchanged unless
// an admin names a new one.
func (s *taskService) Update(ctx context.Context, caller *domain.Principal, id string, in ports.TaskInput) (*ports.TaskView, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	task, err := s.load(ctx, caller, id, "update")
	if err != nil {
		return nil, err
	}

	owner, err := s.policy.ResolveTargetOwner(ctx, caller, in.OwnerID, task.OwnerID)
	if err != nil {
		return nil, err
	}
	assignInput(task, in)
	task.OwnerID = owner
	return s.save(ctx, task)
}

func (s *taskService) Patch(ctx context.Context, caller *domain.Principal, id string, patch domain.TaskPatch) (*ports.TaskView, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be blank", domain.ErrInvalidInput)
	}
	task, err := s.load(ctx, caller, id, "patch")
	if err != nil {
		return nil, err
	}

	owner, err := s.policy.ResolveTargetOwner(ctx, caller, patch.OwnerID, task.OwnerID)
	if err != nil {
		return nil, err
	}
	patch.Apply(task)
	task.OwnerID = owner
	return s.save(ctx, task)
}

func (s *taskService) Delete(ctx context.Context, caller *domain.Principal, id string) error {
	task, err := s.load(ctx, caller, id, "delete")
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.record(domain.AuditTaskDeleted, caller.Username, task.ID, "ok")
	s.log.Info().Str("task_id", task.ID).Str("by", caller.Username).Msg("task deleted")
	return nil
}

func (s *taskService) Complete(ctx context.Context, caller *domain.Principal, id string) (*ports.TaskView, error) {
	task, err := s.load(ctx, caller, id, "complete")
	if err != nil {
		return nil, err
	}
	task.Status = domain.StatusDone
	return s.save(ctx, task)
}

func (s *taskService) ListByStatus(ctx context.Context, caller *domain.Principal, status domain.TaskStatus) ([]ports.TaskView, error) {
	return s.list(ctx, caller, ports.TaskFilter{Status: status})
}

func (s *taskService) ListByPriority(ctx context.Context, caller *domain.Principal, priority domain.Priority) ([]ports.TaskView, error) {
	return s.list(ctx, caller, ports.TaskFilter{Priority: priority})
}

// ListByOwner checks permission before existence so a non-admin cannot probe
// which account ids exist.
func (s *taskService) ListByOwner(ctx context.Context, caller *domain.Principal, ownerID string) ([]ports.TaskView, error) {
	if caller == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !caller.IsAdmin() && caller.AccountID != ownerID {
		s.denied(caller, "list_by_owner", ownerID)
		return nil, domain.ErrForbidden
	}
	if _, err := s.accounts.FindByID(ctx, ownerID); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.List(ctx, ports.TaskFilter{Scope: domain.ScopeOwnedBy(ownerID)})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return s.views(ctx, tasks)
}

// Filter returns the caller's tasks matching q, highest priority first.
func (s *taskService) Filter(ctx context.Context, caller *domain.Principal, q ports.TaskQuery) ([]ports.TaskView, error) {
	f := ports.TaskFilter{
		Status:      q.Status,
		Priority:    q.Priority,
		Responsible: q.Responsible,
	}
	if q.StartDate != nil {
		d := domain.DateOf(*q.StartDate)
		f.DeadlineFrom = &d
	}
	if q.EndDate != nil {
		d := domain.DateOf(*q.EndDate)
		f.DeadlineTo = &d
	}

	views, err := s.list(ctx, caller, f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Task.Priority.Rank() > views[j].Task.Priority.Rank()
	})
	return views, nil
}

// Overdue returns tasks whose deadline is before today and are not done.
func (s *taskService) Overdue(ctx context.Context, caller *domain.Principal) ([]ports.TaskView, error) {
	today := domain.DateOf(s.now())
	return s.list(ctx, caller, ports.TaskFilter{DeadlineBefore: &today, ExcludeStatus: domain.StatusDone})
}

// Upcoming returns tasks due between today and a week from today, inclusive.
func (s *taskService) Upcoming(ctx context.Context, caller *domain.Principal) ([]ports.TaskView, error) {
	today := domain.DateOf(s.now())
	until := today.Add(upcomingWindow)
	return s.list(ctx, caller, ports.TaskFilter{DeadlineFrom: &today, DeadlineTo: &until})
}

// ---------------------------------------------------------------------------

// list applies the caller's scope to f; any Scope already set on f is replaced.
func (s *taskService) list(ctx context.Context, caller *domain.Principal, f ports.TaskFilter) ([]ports.TaskView, error) {
	if caller == nil {
		return nil, domain.ErrUnauthenticated
	}
	f.Scope = s.policy.ScopeForList(caller)
	tasks, err := s.tasks.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return s.views(ctx, tasks)
}

// load fetches a task and checks the caller may touch it. A missing task is
// reported before a forbidden one.
func (s *taskService) load(ctx context.Context, caller *domain.Principal, id, op string) (*domain.Task, error) {
	if caller == nil {
		return nil, domain.ErrUnauthenticated
	}
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(caller, task); err != nil {
		s.denied(caller, op, task.ID)
		return nil, err
	}
	return task, nil
}

func (s *taskService) save(ctx context.Context, task *domain.Task) (*ports.TaskView, error) {
	task.UpdatedAt = s.now().UTC()
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.view(ctx, task)
}

func (s *taskService) view(ctx context.Context, task *domain.Task) (*ports.TaskView, error) {
	views, err := s.views(ctx, []*domain.Task{task})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// views attaches owner summaries, looking each distinct owner up once.
func (s *taskService) views(ctx context.Context, tasks []*domain.Task) ([]ports.TaskView, error) {
	owners := make(map[string]domain.AccountSummary)
	out := make([]ports.TaskView, 0, len(tasks))
	for _, t := range tasks {
		summary, ok := owners[t.OwnerID]
		if !ok {
			account, err := s.accounts.FindByID(ctx, t.OwnerID)
			switch {
			case err == nil:
				summary = account.Summary()
			case errors.Is(err, domain.ErrAccountNotFound):
				summary = domain.AccountSummary{ID: t.OwnerID}
			default:
				return nil, fmt.Errorf("load task owner: %w", err)
			}
			owners[t.OwnerID] = summary
		}
		out = append(out, ports.TaskView{Task: t, Owner: summary})
	}
	return out, nil
}

func (s *taskService) denied(caller *domain.Principal, op, target string) {
	metrics.AccessDeniedTotal.WithLabelValues(op).Inc()
	s.log.Warn().Str("username", caller.Username).Str("operation", op).Str("target", target).Msg("access denied")
	s.record(domain.AuditAccessDenied, caller.Username, target, op)
}

func (s *taskService) record(t domain.AuditType, actor, target, outcome string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(domain.AuditEvent{Type: t, Actor: actor, Target: target, Outcome: outcome, At: s.now().UTC()})
}

func validateInput(in ports.TaskInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if in.Priority != "" && in.Priority.Rank() == 0 {
		return fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidInput, in.Priority)
	}
	if in.Status != "" {
		if _, ok := domain.ParseTaskStatus(string(in.Status)); !ok {
			return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, in.Status)
		}
	}
	return nil
}

// assignInput overwrites the editable fields of t. Missing priority and
// status fall back to MEDIUM and TODO.
func assignInput(t *domain.Task, in ports.TaskInput) {
	t.Title = in.Title
	t.Description = in.Description
	t.Responsible = in.Responsible
	t.Priority = in.Priority
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	t.Status = in.Status
	if t.Status == "" {
		t.Status = domain.StatusTodo
	}
	t.Deadline = nil
	if in.Deadline != nil {
		d := domain.DateOf(*in.Deadline)
		t.Deadline = &d
	}
}

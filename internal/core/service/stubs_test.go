package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type stubAccountRepo struct {
	mu     sync.Mutex
	byName map[string]*domain.Account
	byID   map[string]*domain.Account
	seq    int
	err    error
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{
		byName: make(map[string]*domain.Account),
		byID:   make(map[string]*domain.Account),
	}
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func (r *stubAccountRepo) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if _, exists := r.byName[a.Username]; exists {
		return nil, domain.ErrDuplicateUsername
	}
	r.seq++
	stored := cloneAccount(a)
	stored.ID = "acc-" + strconv.Itoa(r.seq)
	r.byName[stored.Username] = stored
	r.byID[stored.ID] = stored
	return cloneAccount(stored), nil
}

func (r *stubAccountRepo) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.byName[username]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

// add stores an account directly and returns the principal for it.
func (r *stubAccountRepo) add(username string, role domain.Role) *domain.Principal {
	a, err := r.Create(context.Background(), &domain.Account{Username: username, Role: role})
	if err != nil {
		panic(err)
	}
	return domain.NewPrincipal(a)
}

type stubTaskRepo struct {
	mu    sync.Mutex
	tasks []*domain.Task
	seq   int
	// filters records every filter passed to List.
	filters []ports.TaskFilter
}

func newStubTaskRepo() *stubTaskRepo { return &stubTaskRepo{} }

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	return &c
}

func (r *stubTaskRepo) Create(_ context.Context, t *domain.Task) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	stored := cloneTask(t)
	stored.ID = "task-" + strconv.Itoa(r.seq)
	r.tasks = append(r.tasks, stored)
	return cloneTask(stored), nil
}

func (r *stubTaskRepo) FindByID(_ context.Context, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ID == id {
			return cloneTask(t), nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (r *stubTaskRepo) Update(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.tasks {
		if existing.ID == t.ID {
			r.tasks[i] = cloneTask(t)
			return nil
		}
	}
	return domain.ErrTaskNotFound
}

func (r *stubTaskRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.tasks {
		if t.ID == id {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return nil
		}
	}
	return domain.ErrTaskNotFound
}

func (r *stubTaskRepo) List(_ context.Context, f ports.TaskFilter) ([]*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, f)
	var out []*domain.Task
	for _, t := range r.tasks {
		if f.Matches(t) {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

type stubThrottle struct {
	blocked  bool
	err      error
	failures map[string]int
	resets   []string
}

func newStubThrottle() *stubThrottle {
	return &stubThrottle{failures: make(map[string]int)}
}

func (t *stubThrottle) Blocked(_ context.Context, _ string) (bool, error) {
	return t.blocked, t.err
}

func (t *stubThrottle) RecordFailure(_ context.Context, username string) error {
	t.failures[username]++
	return t.err
}

func (t *stubThrottle) Reset(_ context.Context, username string) error {
	t.resets = append(t.resets, username)
	return t.err
}

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *recordingAudit) Record(e domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) types() []domain.AuditType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Type)
	}
	return out
}

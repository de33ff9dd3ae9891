// Package memory implements the repositories in process memory. It backs the
// "memory" store driver and the end-to-end router tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/ports"
)

var (
	_ ports.AccountRepository = (*Store)(nil)
	_ ports.TaskRepository    = (*TaskStore)(nil)
	_ ports.AuditRepository   = (*AuditLog)(nil)
)

// Store keeps accounts. Create checks and inserts under one lock, which is
// what makes usernames unique.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Account
	byName map[string]string
}

func NewStore() *Store {
	return &Store{
		byID:   make(map[string]*domain.Account),
		byName: make(map[string]string),
	}
}

func (s *Store) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[a.Username]; taken {
		return nil, domain.ErrDuplicateUsername
	}
	stored := *a
	stored.ID = uuid.NewString()
	s.byID[stored.ID] = &stored
	s.byName[stored.Username] = stored.ID
	out := stored
	return &out, nil
}

func (s *Store) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

func (s *Store) FindByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := *a
	return &out, nil
}

// TaskStore keeps tasks.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*domain.Task)}
}

func cloneTask(t *domain.Task) *domain.Task {
	out := *t
	if t.Deadline != nil {
		d := *t.Deadline
		out.Deadline = &d
	}
	return &out
}

func (s *TaskStore) Create(_ context.Context, t *domain.Task) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneTask(t)
	stored.ID = uuid.NewString()
	s.tasks[stored.ID] = stored
	return cloneTask(stored), nil
}

func (s *TaskStore) FindByID(_ context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (s *TaskStore) Update(_ context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *TaskStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *TaskStore) List(_ context.Context, f ports.TaskFilter) ([]*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Task, 0)
	for _, t := range s.tasks {
		if f.Matches(t) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// AuditLog appends audit events to a slice.
type AuditLog struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func NewAuditLog() *AuditLog { return &AuditLog{} }

func (l *AuditLog) Append(_ context.Context, e domain.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

// Events returns a copy of everything appended so far.
func (l *AuditLog) Events() []domain.AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.AuditEvent(nil), l.events...)
}

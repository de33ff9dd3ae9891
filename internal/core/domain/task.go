package domain

import (
	"strings"
	"time"
)

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

var priorityRank = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
}

// ParsePriority accepts a priority name in any letter case.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := priorityRank[p]
	return p, ok
}

// Rank orders priorities so that HIGH > MEDIUM > LOW. Unknown priorities rank 0.
func (p Priority) Rank() int {
	return priorityRank[p]
}

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
)

// ParseTaskStatus accepts a status name in any letter case.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusTodo, StatusInProgress, StatusDone:
		return st, true
	}
	return "", false
}

// DateLayout is the wire format of task deadlines.
const DateLayout = "2006-01-02"

// Task is a unit of work owned by exactly one account.
type Task struct {
	ID          string
	Title       string
	Description string
	Responsible string
	Priority    Priority
	Deadline    *time.Time // calendar date at UTC midnight, nil when unset
	Status      TaskStatus
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOverdue reports whether the task has a deadline strictly before today
// and is not yet done.
func (t *Task) IsOverdue(today time.Time) bool {
	return t.Deadline != nil && t.Deadline.Before(DateOf(today)) && t.Status != StatusDone
}

// TaskPatch carries the fields of a partial update. A nil field is left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Responsible *string
	Priority    *Priority
	Deadline    *time.Time
	Status      *TaskStatus
	OwnerID     *string
}

// Apply copies every set field except OwnerID onto t.
// Ownership changes go through the access policy.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Responsible != nil {
		t.Responsible = *p.Responsible
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Deadline != nil {
		d := DateOf(*p.Deadline)
		t.Deadline = &d
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Scope restricts which tasks a query may see. It is derived from the
// caller's principal, never from request input.
type Scope struct {
	All     bool
	OwnerID string
}

func ScopeAll() Scope { return Scope{All: true} }

func ScopeOwnedBy(accountID string) Scope { return Scope{OwnerID: accountID} }

// Admits reports whether a task owned by ownerID falls inside the scope.
// The zero Scope admits nothing.
func (s Scope) Admits(ownerID string) bool {
	if s.All {
		return true
	}
	return s.OwnerID != "" && s.OwnerID == ownerID
}

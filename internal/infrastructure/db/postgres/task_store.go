package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/esig/task-manager/internal/core/domain"
	"github.com/esig/task-manager/internal/core/ports"
)

var _ ports.TaskRepository = (*TaskStore)(nil)

// TaskStore persists tasks in the tasks table.
type TaskStore struct {
	pool *pgxpool.Pool
}

func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

const taskColumns = `id, title, description, responsible, priority, deadline, status, owner_id, created_at, updated_at`

func (s *TaskStore) Create(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	const query = `
		INSERT INTO tasks (id, title, description, responsible, priority, deadline, status, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + taskColumns
	row := s.pool.QueryRow(ctx, query,
		uuid.NewString(), t.Title, t.Description, t.Responsible, string(t.Priority),
		t.Deadline, string(t.Status), t.OwnerID, t.CreatedAt, t.UpdatedAt)
	created, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return created, nil
}

func (s *TaskStore) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) Update(ctx context.Context, t *domain.Task) error {
	const query = `
		UPDATE tasks SET title = $2, description = $3, responsible = $4, priority = $5,
			deadline = $6, status = $7, owner_id = $8, updated_at = $9
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		t.ID, t.Title, t.Description, t.Responsible, string(t.Priority),
		t.Deadline, string(t.Status), t.OwnerID, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (s *TaskStore) List(ctx context.Context, f ports.TaskFilter) ([]*domain.Task, error) {
	where, args, ok := buildTaskWhere(f)
	if !ok {
		return []*domain.Task{}, nil
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// buildTaskWhere renders f as a WHERE clause with positional arguments. The
// scope predicate is always the first condition; ok is false when the scope
// admits nothing.
func buildTaskWhere(f ports.TaskFilter) (string, []any, bool) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	switch {
	case f.Scope.All:
	case f.Scope.OwnerID != "":
		add("owner_id = $%d", f.Scope.OwnerID)
	default:
		return "", nil, false
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.ExcludeStatus != "" {
		add("status <> $%d", string(f.ExcludeStatus))
	}
	if f.Priority != "" {
		add("priority = $%d", string(f.Priority))
	}
	if f.Responsible != "" {
		add("strpos(lower(responsible), lower($%d)) > 0", f.Responsible)
	}
	if f.DeadlineFrom != nil {
		add("deadline >= $%d", *f.DeadlineFrom)
	}
	if f.DeadlineTo != nil {
		add("deadline <= $%d", *f.DeadlineTo)
	}
	if f.DeadlineBefore != nil {
		add("deadline < $%d", *f.DeadlineBefore)
	}

	if len(conds) == 0 {
		return "", nil, true
	}
	return " WHERE " + strings.Join(conds, " AND "), args, true
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t                domain.Task
		priority, status string
		deadline         *time.Time
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Responsible, &priority,
		&deadline, &status, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Priority = domain.Priority(priority)
	t.Status = domain.TaskStatus(status)
	if deadline != nil {
		d := domain.DateOf(*deadline)
		t.Deadline = &d
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

package tasks

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskhub/taskhub/internal/shared"
)

// Repository defines data access for tasks.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Task, int, error)
	Get(ctx context.Context, id int64) (Task, error)
	Create(ctx context.Context, task Task) (Task, error)
	Update(ctx context.Context, id int64, task Task) error
	Delete(ctx context.Context, id int64) error
	Statistics(ctx context.Context, scope scopeArgs, now time.Time) (Statistics, error)
	ListOverdue(ctx context.Context, now time.Time) ([]Task, error)
}

// scopeArgs mirrors authz.Scope for the statistics query.
type scopeArgs struct {
	All          bool
	DepartmentID *int64
	AssignedTo   *int64
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const taskColumns = `id, title, description, status, department_id, assigned_to, assigned_by, due_date, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Task, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if !filters.Scope.All {
		switch {
		case filters.Scope.DepartmentID != nil:
			argCount++
			where += ` AND department_id = $` + strconv.Itoa(argCount)
			args = append(args, *filters.Scope.DepartmentID)
		case filters.Scope.AssignedTo != nil:
			argCount++
			where += ` AND assigned_to = $` + strconv.Itoa(argCount)
			args = append(args, *filters.Scope.AssignedTo)
		default:
			where += ` AND FALSE`
		}
	}

	if filters.Status != "" {
		argCount++
		where += ` AND status = $` + strconv.Itoa(argCount)
		args = append(args, string(filters.Status))
	}
	if filters.DepartmentID != nil {
		argCount++
		where += ` AND department_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.DepartmentID)
	}
	if filters.AssignedTo != nil {
		argCount++
		where += ` AND assigned_to = $` + strconv.Itoa(argCount)
		args = append(args, *filters.AssignedTo)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY created_at DESC`
	if filters.PerPage > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.PerPage)

		offset := (filters.Page - 1) * filters.PerPage
		if offset < 0 {
			offset = 0
		}
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Task, error) {
	var t Task
	err := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id).
		Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.DepartmentID,
			&t.AssignedTo, &t.AssignedBy, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, shared.ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

func (r *repository) Create(ctx context.Context, task Task) (Task, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tasks (title, description, status, department_id, assigned_to, assigned_by, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		task.Title, task.Description, string(task.Status), task.DepartmentID,
		task.AssignedTo, task.AssignedBy, task.DueDate).
		Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

func (r *repository) Update(ctx context.Context, id int64, task Task) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks
		 SET title = $1, description = $2, status = $3, department_id = $4,
		     assigned_to = $5, assigned_by = $6, due_date = $7, updated_at = now()
		 WHERE id = $8`,
		task.Title, task.Description, string(task.Status), task.DepartmentID,
		task.AssignedTo, task.AssignedBy, task.DueDate, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Statistics(ctx context.Context, scope scopeArgs, now time.Time) (Statistics, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0
	if !scope.All {
		switch {
		case scope.DepartmentID != nil:
			argCount++
			where += ` AND department_id = $` + strconv.Itoa(argCount)
			args = append(args, *scope.DepartmentID)
		case scope.AssignedTo != nil:
			argCount++
			where += ` AND assigned_to = $` + strconv.Itoa(argCount)
			args = append(args, *scope.AssignedTo)
		default:
			where += ` AND FALSE`
		}
	}

	argCount++
	nowArg := `$` + strconv.Itoa(argCount)
	args = append(args, now)

	var stats Statistics
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'pending'),
		        COUNT(*) FILTER (WHERE status = 'in_progress'),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COUNT(*) FILTER (WHERE status <> 'completed' AND due_date IS NOT NULL AND due_date < `+nowArg+`)
		 FROM tasks`+where, args...).
		Scan(&stats.Total, &stats.Pending, &stats.InProgress, &stats.Completed, &stats.Overdue)
	if err != nil {
		return Statistics{}, err
	}
	return stats, nil
}

// ListOverdue returns incomplete tasks whose due date has passed. Used
// by the background scan job.
func (r *repository) ListOverdue(ctx context.Context, now time.Time) ([]Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status <> 'completed' AND due_date IS NOT NULL AND due_date < $1
		 ORDER BY due_date`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows pgx.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.DepartmentID,
			&t.AssignedTo, &t.AssignedBy, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

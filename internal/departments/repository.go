package departments

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskhub/taskhub/internal/shared"
)

// Repository defines data access for departments.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Department, error)
	Get(ctx context.Context, id int64) (Department, error)
	Create(ctx context.Context, dept Department) (Department, error)
	Update(ctx context.Context, id int64, dept Department) error
	SetManager(ctx context.Context, id int64, managerID *int64) error
	Delete(ctx context.Context, id int64) error
	CountMembers(ctx context.Context, id int64) (int, error)
	Statistics(ctx context.Context, id int64) (Statistics, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const deptSelect = `
	SELECT d.id, d.name, d.description, d.manager_id,
	       (SELECT COUNT(*) FROM users u WHERE u.department_id = d.id) AS users_count,
	       (SELECT COUNT(*) FROM tasks t WHERE t.department_id = d.id) AS tasks_count,
	       d.created_at, d.updated_at
	FROM departments d`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Department, error) {
	query := deptSelect + ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if !filters.Scope.All {
		if filters.Scope.DepartmentID != nil {
			argCount++
			query += ` AND d.id = $` + strconv.Itoa(argCount)
			args = append(args, *filters.Scope.DepartmentID)
		} else {
			query += ` AND FALSE`
		}
	}

	if filters.Search != "" {
		argCount++
		query += ` AND d.name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}

	query += ` ORDER BY d.created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var depts []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.ManagerID,
			&d.UserCount, &d.TaskCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Department, error) {
	var d Department
	err := r.pool.QueryRow(ctx, deptSelect+` WHERE d.id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Description, &d.ManagerID,
			&d.UserCount, &d.TaskCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Department{}, shared.ErrNotFound
		}
		return Department{}, err
	}
	return d, nil
}

func (r *repository) Create(ctx context.Context, dept Department) (Department, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO departments (name, description, manager_id) VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		dept.Name, dept.Description, dept.ManagerID).
		Scan(&dept.ID, &dept.CreatedAt, &dept.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Department{}, shared.ErrDuplicate
		}
		return Department{}, err
	}
	return dept, nil
}

func (r *repository) Update(ctx context.Context, id int64, dept Department) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE departments SET name = $1, description = $2, updated_at = now() WHERE id = $3`,
		dept.Name, dept.Description, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SetManager(ctx context.Context, id int64, managerID *int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE departments SET manager_id = $1, updated_at = now() WHERE id = $2`, managerID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) CountMembers(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE department_id = $1`, id).Scan(&n)
	return n, err
}

func (r *repository) Statistics(ctx context.Context, id int64) (Statistics, error) {
	var stats Statistics
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'pending'),
		        COUNT(*) FILTER (WHERE status = 'in_progress'),
		        COUNT(*) FILTER (WHERE status = 'completed')
		 FROM tasks WHERE department_id = $1`, id).
		Scan(&stats.TotalTasks, &stats.PendingTasks, &stats.InProgressTasks, &stats.CompletedTasks)
	if err != nil {
		return Statistics{}, err
	}
	members, err := r.CountMembers(ctx, id)
	if err != nil {
		return Statistics{}, err
	}
	stats.Members = members
	return stats, nil
}

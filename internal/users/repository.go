package users

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskhub/taskhub/internal/shared"
)

// Repository defines data access for user accounts.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, user User, passwordHash string) (User, error)
	Update(ctx context.Context, id int64, user User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]User, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if !filters.Scope.All {
		if filters.Scope.DepartmentID != nil {
			argCount++
			where += ` AND department_id = $` + strconv.Itoa(argCount)
			args = append(args, *filters.Scope.DepartmentID)
		} else {
			// A scoped caller without a department sees nothing.
			where += ` AND FALSE`
		}
	}

	if filters.Search != "" {
		argCount++
		ph := strconv.Itoa(argCount)
		where += ` AND (name ILIKE $` + ph + ` OR email ILIKE $` + ph + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	if filters.DepartmentID != nil {
		argCount++
		where += ` AND department_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.DepartmentID)
	}

	if filters.RoleSlug != "" {
		argCount++
		where += ` AND id IN (SELECT ru.user_id FROM role_user ru JOIN roles ro ON ro.id = ru.role_id WHERE ro.slug = $` + strconv.Itoa(argCount) + `)`
		args = append(args, filters.RoleSlug)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, name, email, department_id, is_active, created_at, updated_at FROM users` +
		where + ` ORDER BY created_at DESC`

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

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.DepartmentID,
			&user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, department_id, is_active, created_at, updated_at
		 FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Name, &user.Email, &user.DepartmentID,
			&user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (r *repository) Create(ctx context.Context, user User, passwordHash string) (User, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, department_id, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)
		 RETURNING id, is_active, created_at, updated_at`,
		user.Name, user.Email, passwordHash, user.DepartmentID).
		Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, mapPGError(err)
	}
	return user, nil
}

func (r *repository) Update(ctx context.Context, id int64, user User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET name = $1, email = $2, department_id = $3, updated_at = now()
		 WHERE id = $4`,
		user.Name, user.Email, user.DepartmentID, id)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, passwordHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}

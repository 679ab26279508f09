package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/platform/db"
	"github.com/taskhub/taskhub/internal/shared"
)

// Repository defines persistence for the role/permission catalog and the
// user-role graph.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleBySlug(ctx context.Context, slug string) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	CountRoleUsers(ctx context.Context, roleID int64) (int, error)

	ListPermissions(ctx context.Context) ([]Permission, error)
	UpsertPermission(ctx context.Context, perm Permission) (Permission, error)
	ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error

	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	SyncUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	RolesForUser(ctx context.Context, userID int64) ([]Role, error)

	ResolvePrincipal(ctx context.Context, userID int64) (*authz.Principal, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)
var _ authz.PrincipalSource = (*PGRepository)(nil)

const roleColumns = `id, name, slug, description, created_at, updated_at`

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	return r.getRole(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
}

// GetRoleBySlug fetches a role by its unique slug.
func (r *PGRepository) GetRoleBySlug(ctx context.Context, slug string) (Role, error) {
	return r.getRole(ctx, `SELECT `+roleColumns+` FROM roles WHERE slug = $1`, slug)
}

func (r *PGRepository) getRole(ctx context.Context, query string, arg any) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&role.ID, &role.Name, &role.Slug, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, slug, description) VALUES ($1, $2, $3)
		 RETURNING `+roleColumns,
		role.Name, role.Slug, role.Description).
		Scan(&role.ID, &role.Name, &role.Slug, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, mapPGError(err)
	}
	return role, nil
}

// UpdateRole updates name and description; slugs are immutable.
func (r *PGRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $1, description = $2, updated_at = now()
		 WHERE id = $3 RETURNING `+roleColumns,
		role.Name, role.Description, role.ID).
		Scan(&role.ID, &role.Name, &role.Slug, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, mapPGError(err)
	}
	return role, nil
}

// DeleteRole removes a role. Returns shared.ErrNotFound when absent.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountRoleUsers returns the number of users holding the role.
func (r *PGRepository) CountRoleUsers(ctx context.Context, roleID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM role_user WHERE role_id = $1`, roleID).Scan(&n)
	return n, err
}

// ListPermissions returns every catalog permission ordered by slug.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, slug, description FROM permissions ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// UpsertPermission inserts the permission or refreshes its name and
// description, keyed by slug. Used by the seeder.
func (r *PGRepository) UpsertPermission(ctx context.Context, perm Permission) (Permission, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (name, slug, description) VALUES ($1, $2, $3)
		 ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
		 RETURNING id, name, slug, description`,
		perm.Name, perm.Slug, perm.Description).
		Scan(&perm.ID, &perm.Name, &perm.Slug, &perm.Description)
	if err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// ListRolePermissions returns the permissions attached to a role.
func (r *PGRepository) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.slug, p.description
		 FROM permissions p
		 JOIN permission_role pr ON pr.permission_id = p.id
		 WHERE pr.role_id = $1
		 ORDER BY p.slug`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// ReplaceRolePermissions replaces a role's permission set in one
// transaction: detach everything, reattach the new set.
func (r *PGRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM permission_role WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, id := range permissionIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO permission_role (role_id, permission_id) VALUES ($1, $2)
				 ON CONFLICT DO NOTHING`, roleID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// AssignRole attaches a role to a user. Assigning an already-held role is
// a no-op.
func (r *PGRepository) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_user (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID)
	return err
}

// RemoveRole detaches a role from a user.
func (r *PGRepository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM role_user WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

// SyncUserRoles replaces the user's role set in one transaction
// (full-replace, so concurrent syncs resolve to whichever write lands last).
func (r *PGRepository) SyncUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_user WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, id := range roleIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_user (user_id, role_id) VALUES ($1, $2)
				 ON CONFLICT DO NOTHING`, userID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// RolesForUser returns the roles assigned to a user.
func (r *PGRepository) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, r.slug, r.description, r.created_at, r.updated_at
		 FROM roles r
		 JOIN role_user ru ON ru.role_id = r.id
		 WHERE ru.user_id = $1
		 ORDER BY r.slug`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

// ResolvePrincipal builds the caller's principal from persisted
// assignments: department affiliation, role slugs, and the deduplicated
// union of permission slugs across those roles.
func (r *PGRepository) ResolvePrincipal(ctx context.Context, userID int64) (*authz.Principal, error) {
	var departmentID *int64
	err := r.pool.QueryRow(ctx,
		`SELECT department_id FROM users WHERE id = $1`, userID).Scan(&departmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	roleRows, err := r.pool.Query(ctx,
		`SELECT r.slug FROM roles r JOIN role_user ru ON ru.role_id = r.id WHERE ru.user_id = $1`,
		userID)
	if err != nil {
		return nil, err
	}
	roleSlugs, err := scanSlugs(roleRows)
	if err != nil {
		return nil, err
	}

	permRows, err := r.pool.Query(ctx,
		`SELECT DISTINCT p.slug
		 FROM permissions p
		 JOIN permission_role pr ON pr.permission_id = p.id
		 JOIN role_user ru ON ru.role_id = pr.role_id
		 WHERE ru.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	permSlugs, err := scanSlugs(permRows)
	if err != nil {
		return nil, err
	}

	return authz.NewPrincipal(userID, departmentID, roleSlugs, permSlugs), nil
}

func scanRoles(rows pgx.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Slug, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Slug, &perm.Description); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func scanSlugs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}

package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskhub/taskhub/internal/app"
	"github.com/taskhub/taskhub/internal/platform/db"
	"github.com/taskhub/taskhub/internal/shared"
)

type permissionSeed struct {
	Name string
	Slug string
}

var permissionSeeds = []permissionSeed{
	{Name: "View Users", Slug: shared.PermUsersView},
	{Name: "Create Users", Slug: shared.PermUsersCreate},
	{Name: "Update Users", Slug: shared.PermUsersUpdate},
	{Name: "Delete Users", Slug: shared.PermUsersDelete},
	{Name: "View Departments", Slug: shared.PermDepartmentsView},
	{Name: "Create Departments", Slug: shared.PermDepartmentsCreate},
	{Name: "Update Departments", Slug: shared.PermDepartmentsUpdate},
	{Name: "Delete Departments", Slug: shared.PermDepartmentsDelete},
	{Name: "View Tasks", Slug: shared.PermTasksView},
	{Name: "Create Tasks", Slug: shared.PermTasksCreate},
	{Name: "Update Tasks", Slug: shared.PermTasksUpdate},
	{Name: "Delete Tasks", Slug: shared.PermTasksDelete},
	{Name: "Assign Tasks", Slug: shared.PermTasksAssign},
	{Name: "View Roles", Slug: shared.PermRolesView},
	{Name: "Manage Roles", Slug: shared.PermRolesManage},
}

type roleSeed struct {
	Name        string
	Slug        string
	Description string
	Grants      []string
}

var roleSeeds = []roleSeed{
	{
		Name:        "Administrator",
		Slug:        shared.RoleAdmin,
		Description: "Full access to every resource",
		Grants:      shared.AllPermissionSlugs(),
	},
	{
		Name:        "Manager",
		Slug:        shared.RoleManager,
		Description: "Runs a department and its tasks",
		Grants: []string{
			shared.PermUsersView, shared.PermUsersCreate, shared.PermUsersUpdate,
			shared.PermDepartmentsView, shared.PermDepartmentsUpdate,
			shared.PermTasksView, shared.PermTasksCreate, shared.PermTasksUpdate,
			shared.PermTasksDelete, shared.PermTasksAssign,
		},
	},
	{
		Name:        "Staff",
		Slug:        shared.RoleStaff,
		Description: "Works on assigned tasks",
		Grants:      []string{shared.PermTasksView, shared.PermTasksUpdate},
	},
}

func main() {
	ctx := context.Background()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := seed(ctx, pool, logger); err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seed completed")
}

// seed upserts the role and permission catalog. It is safe to run
// repeatedly against a live database.
func seed(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range permissionSeeds {
		if _, err := tx.Exec(ctx, `
			INSERT INTO permissions (name, slug)
			VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name`,
			p.Name, p.Slug); err != nil {
			return err
		}
	}

	for _, r := range roleSeeds {
		var roleID int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO roles (name, slug, description)
			VALUES ($1, $2, $3)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, updated_at = now()
			RETURNING id`,
			r.Name, r.Slug, r.Description).Scan(&roleID); err != nil {
			return err
		}
		for _, grant := range r.Grants {
			if _, err := tx.Exec(ctx, `
				INSERT INTO permission_role (role_id, permission_id)
				SELECT $1, p.id FROM permissions p WHERE p.slug = $2
				ON CONFLICT DO NOTHING`,
				roleID, grant); err != nil {
				return err
			}
		}
		logger.Info("seeded role", slog.String("slug", r.Slug), slog.Int("grants", len(r.Grants)))
	}

	if err := seedAdmin(ctx, tx, logger); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// seedAdmin creates a bootstrap administrator when SEED_ADMIN_EMAIL and
// SEED_ADMIN_PASSWORD are set. An existing user with that email is left
// untouched.
func seedAdmin(ctx context.Context, tx pgx.Tx, logger *slog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL")))
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	var userID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, is_active)
		VALUES ('Administrator', $1, $2, TRUE)
		ON CONFLICT (email) DO NOTHING
		RETURNING id`,
		email, string(hash)).Scan(&userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			logger.Info("admin user already exists", slog.String("email", email))
			return nil
		}
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO role_user (user_id, role_id)
		SELECT $1, r.id FROM roles r WHERE r.slug = $2
		ON CONFLICT DO NOTHING`,
		userID, shared.RoleAdmin); err != nil {
		return err
	}
	logger.Info("seeded admin user", slog.String("email", email))
	return nil
}

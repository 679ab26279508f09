package shared

// Reserved role slugs. These three always exist and are never deletable.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// ReservedRoleSlugs lists the protected system roles.
func ReservedRoleSlugs() []string {
	return []string{RoleAdmin, RoleManager, RoleStaff}
}

// User permissions.
const (
	PermUsersView   = "users.view"
	PermUsersCreate = "users.create"
	PermUsersUpdate = "users.update"
	PermUsersDelete = "users.delete"
)

// Department permissions.
const (
	PermDepartmentsView   = "departments.view"
	PermDepartmentsCreate = "departments.create"
	PermDepartmentsUpdate = "departments.update"
	PermDepartmentsDelete = "departments.delete"
)

// Task permissions.
const (
	PermTasksView   = "tasks.view"
	PermTasksCreate = "tasks.create"
	PermTasksUpdate = "tasks.update"
	PermTasksDelete = "tasks.delete"
	PermTasksAssign = "tasks.assign"
)

// Role catalog permissions.
const (
	PermRolesView   = "roles.view"
	PermRolesManage = "roles.manage"
)

// AllPermissionSlugs lists every permission slug in the catalog.
func AllPermissionSlugs() []string {
	return []string{
		PermUsersView, PermUsersCreate, PermUsersUpdate, PermUsersDelete,
		PermDepartmentsView, PermDepartmentsCreate, PermDepartmentsUpdate, PermDepartmentsDelete,
		PermTasksView, PermTasksCreate, PermTasksUpdate, PermTasksDelete, PermTasksAssign,
		PermRolesView, PermRolesManage,
	}
}

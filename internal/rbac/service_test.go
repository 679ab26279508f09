package rbac

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/shared"
	_ "github.com/taskhub/taskhub/testing"
)

type mockRepository struct {
	roles       map[int64]Role
	rolesBySlug map[string]int64
	nextRoleID  int64

	permissions map[int64]Permission
	rolePerms   map[int64][]int64
	userRoles   map[int64][]int64

	userDepartments map[int64]*int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:           make(map[int64]Role),
		rolesBySlug:     make(map[string]int64),
		nextRoleID:      1,
		permissions:     make(map[int64]Permission),
		rolePerms:       make(map[int64][]int64),
		userRoles:       make(map[int64][]int64),
		userDepartments: make(map[int64]*int64),
	}
}

func (m *mockRepository) addRole(slug string, permSlugs ...string) Role {
	role := Role{ID: m.nextRoleID, Name: slug, Slug: slug}
	m.nextRoleID++
	m.roles[role.ID] = role
	m.rolesBySlug[slug] = role.ID
	for _, ps := range permSlugs {
		permID := int64(len(m.permissions) + 1)
		for id, p := range m.permissions {
			if p.Slug == ps {
				permID = id
			}
		}
		m.permissions[permID] = Permission{ID: permID, Name: ps, Slug: ps}
		m.rolePerms[role.ID] = append(m.rolePerms[role.ID], permID)
	}
	return role
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return r, nil
}

func (m *mockRepository) GetRoleBySlug(ctx context.Context, slug string) (Role, error) {
	id, ok := m.rolesBySlug[slug]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return m.roles[id], nil
}

func (m *mockRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	if _, exists := m.rolesBySlug[role.Slug]; exists {
		return Role{}, shared.ErrDuplicate
	}
	role.ID = m.nextRoleID
	m.nextRoleID++
	m.roles[role.ID] = role
	m.rolesBySlug[role.Slug] = role.ID
	return role, nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	existing, ok := m.roles[role.ID]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	existing.Name = role.Name
	existing.Description = role.Description
	m.roles[role.ID] = existing
	return existing, nil
}

func (m *mockRepository) DeleteRole(ctx context.Context, id int64) error {
	role, ok := m.roles[id]
	if !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	delete(m.rolesBySlug, role.Slug)
	delete(m.rolePerms, id)
	return nil
}

func (m *mockRepository) CountRoleUsers(ctx context.Context, roleID int64) (int, error) {
	n := 0
	for _, roles := range m.userRoles {
		for _, id := range roles {
			if id == roleID {
				n++
			}
		}
	}
	return n, nil
}

func (m *mockRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(m.permissions))
	for _, p := range m.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *mockRepository) UpsertPermission(ctx context.Context, perm Permission) (Permission, error) {
	for id, p := range m.permissions {
		if p.Slug == perm.Slug {
			perm.ID = id
			m.permissions[id] = perm
			return perm, nil
		}
	}
	perm.ID = int64(len(m.permissions) + 1)
	m.permissions[perm.ID] = perm
	return perm, nil
}

func (m *mockRepository) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	var out []Permission
	for _, id := range m.rolePerms[roleID] {
		out = append(out, m.permissions[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *mockRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	m.rolePerms[roleID] = append([]int64(nil), permissionIDs...)
	return nil
}

func (m *mockRepository) AssignRole(ctx context.Context, userID, roleID int64) error {
	for _, id := range m.userRoles[userID] {
		if id == roleID {
			return nil
		}
	}
	m.userRoles[userID] = append(m.userRoles[userID], roleID)
	return nil
}

func (m *mockRepository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	roles := m.userRoles[userID]
	for i, id := range roles {
		if id == roleID {
			m.userRoles[userID] = append(roles[:i], roles[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockRepository) SyncUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	m.userRoles[userID] = append([]int64(nil), roleIDs...)
	return nil
}

func (m *mockRepository) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	var out []Role
	for _, id := range m.userRoles[userID] {
		out = append(out, m.roles[id])
	}
	return out, nil
}

func (m *mockRepository) ResolvePrincipal(ctx context.Context, userID int64) (*authz.Principal, error) {
	roles, _ := m.RolesForUser(ctx, userID)
	if len(roles) == 0 {
		if _, ok := m.userDepartments[userID]; !ok {
			return nil, shared.ErrNotFound
		}
	}
	var roleSlugs, permSlugs []string
	for _, r := range roles {
		roleSlugs = append(roleSlugs, r.Slug)
		for _, pid := range m.rolePerms[r.ID] {
			permSlugs = append(permSlugs, m.permissions[pid].Slug)
		}
	}
	return authz.NewPrincipal(userID, m.userDepartments[userID], roleSlugs, permSlugs), nil
}

func TestCreateRoleValidation(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.CreateRole(context.Background(), "", "lead", "")
	assert.ErrorIs(t, err, shared.ErrValidation)

	role, err := svc.CreateRole(context.Background(), "  Team Lead  ", " LEAD ", "leads a team")
	require.NoError(t, err)
	assert.Equal(t, "Team Lead", role.Name)
	assert.Equal(t, "lead", role.Slug)
}

func TestCreateRoleDuplicateSlug(t *testing.T) {
	repo := newMockRepository()
	repo.addRole("lead")
	svc := NewService(repo)

	_, err := svc.CreateRole(context.Background(), "Lead", "lead", "")
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestDeleteRoleProtections(t *testing.T) {
	repo := newMockRepository()
	admin := repo.addRole(shared.RoleAdmin)
	lead := repo.addRole("lead")
	assigned := repo.addRole("reviewer")
	repo.userRoles[7] = []int64{assigned.ID}
	svc := NewService(repo)

	err := svc.DeleteRole(context.Background(), admin.ID)
	assert.ErrorIs(t, err, shared.ErrPreconditionFailed)

	err = svc.DeleteRole(context.Background(), assigned.ID)
	assert.ErrorIs(t, err, shared.ErrPreconditionFailed)

	require.NoError(t, svc.DeleteRole(context.Background(), lead.ID))
	_, err = svc.GetRole(context.Background(), lead.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSetRolePermissionsDedupes(t *testing.T) {
	repo := newMockRepository()
	role := repo.addRole("lead")
	p1, _ := repo.UpsertPermission(context.Background(), Permission{Slug: shared.PermTasksView, Name: "View Tasks"})
	p2, _ := repo.UpsertPermission(context.Background(), Permission{Slug: shared.PermTasksUpdate, Name: "Update Tasks"})
	svc := NewService(repo)

	err := svc.SetRolePermissions(context.Background(), role.ID, []int64{p1.ID, p2.ID, p1.ID})
	require.NoError(t, err)

	perms, err := svc.RolePermissions(context.Background(), role.ID)
	require.NoError(t, err)
	assert.Len(t, perms, 2)
}

func TestSetRolePermissionsUnknownRole(t *testing.T) {
	svc := NewService(newMockRepository())
	err := svc.SetRolePermissions(context.Background(), 99, []int64{1})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSyncRolesSkipsUnknownSlugsAndIsIdempotent(t *testing.T) {
	repo := newMockRepository()
	staff := repo.addRole(shared.RoleStaff)
	lead := repo.addRole("lead")
	svc := NewService(repo)

	err := svc.SyncRoles(context.Background(), 7, []string{"staff", "ghost", " LEAD ", "staff"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{staff.ID, lead.ID}, repo.userRoles[7])

	err = svc.SyncRoles(context.Background(), 7, []string{"staff", "lead"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{staff.ID, lead.ID}, repo.userRoles[7])

	err = svc.SyncRoles(context.Background(), 7, []string{"lead"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{lead.ID}, repo.userRoles[7])
}

func TestAssignRoleIdempotent(t *testing.T) {
	repo := newMockRepository()
	staff := repo.addRole(shared.RoleStaff)
	svc := NewService(repo)

	require.NoError(t, svc.AssignRole(context.Background(), 7, shared.RoleStaff))
	require.NoError(t, svc.AssignRole(context.Background(), 7, shared.RoleStaff))
	assert.Equal(t, []int64{staff.ID}, repo.userRoles[7])

	err := svc.AssignRole(context.Background(), 7, "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolvePrincipalUnionsPermissions(t *testing.T) {
	repo := newMockRepository()
	staff := repo.addRole(shared.RoleStaff, shared.PermTasksView, shared.PermTasksUpdate)
	lead := repo.addRole("lead", shared.PermTasksView, shared.PermTasksAssign)
	dept := int64(10)
	repo.userDepartments[7] = &dept
	repo.userRoles[7] = []int64{staff.ID, lead.ID}

	p, err := repo.ResolvePrincipal(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, p.HasRole(shared.RoleStaff))
	assert.True(t, p.HasRole("lead"))
	assert.True(t, p.HasPermission(shared.PermTasksAssign))
	assert.True(t, p.HasPermission(shared.PermTasksView))
	assert.False(t, p.HasPermission(shared.PermTasksDelete))
	require.NotNil(t, p.DepartmentID)
	assert.EqualValues(t, 10, *p.DepartmentID)
}

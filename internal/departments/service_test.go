package departments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/taskhub/internal/authz"
	"github.com/taskhub/taskhub/internal/rbac"
	"github.com/taskhub/taskhub/internal/shared"
	_ "github.com/taskhub/taskhub/testing"
)

type mockRepo struct {
	depts   map[int64]Department
	members map[int64]int
	nextID  int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{depts: make(map[int64]Department), members: make(map[int64]int), nextID: 1}
}

func (m *mockRepo) List(ctx context.Context, filters ListFilters) ([]Department, error) {
	var out []Department
	for _, d := range m.depts {
		if !filters.Scope.All && filters.Scope.DepartmentID != nil && d.ID != *filters.Scope.DepartmentID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *mockRepo) Get(ctx context.Context, id int64) (Department, error) {
	d, ok := m.depts[id]
	if !ok {
		return Department{}, shared.ErrNotFound
	}
	return d, nil
}

func (m *mockRepo) Create(ctx context.Context, dept Department) (Department, error) {
	dept.ID = m.nextID
	m.nextID++
	m.depts[dept.ID] = dept
	return dept, nil
}

func (m *mockRepo) Update(ctx context.Context, id int64, dept Department) error {
	existing, ok := m.depts[id]
	if !ok {
		return shared.ErrNotFound
	}
	existing.Name = dept.Name
	existing.Description = dept.Description
	m.depts[id] = existing
	return nil
}

func (m *mockRepo) SetManager(ctx context.Context, id int64, managerID *int64) error {
	existing, ok := m.depts[id]
	if !ok {
		return shared.ErrNotFound
	}
	existing.ManagerID = managerID
	m.depts[id] = existing
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.depts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.depts, id)
	return nil
}

func (m *mockRepo) CountMembers(ctx context.Context, id int64) (int, error) {
	return m.members[id], nil
}

func (m *mockRepo) Statistics(ctx context.Context, id int64) (Statistics, error) {
	return Statistics{TotalTasks: 3, PendingTasks: 1, CompletedTasks: 2, Members: m.members[id]}, nil
}

// rbacStub records role grants without touching real storage.
type rbacStub struct {
	granted map[int64][]string
}

func (s *rbacStub) ListRoles(ctx context.Context) ([]rbac.Role, error)       { return nil, nil }
func (s *rbacStub) GetRole(ctx context.Context, id int64) (rbac.Role, error) { return rbac.Role{}, nil }

func (s *rbacStub) GetRoleBySlug(ctx context.Context, slug string) (rbac.Role, error) {
	return rbac.Role{ID: 2, Slug: slug}, nil
}

func (s *rbacStub) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	return role, nil
}

func (s *rbacStub) UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	return role, nil
}

func (s *rbacStub) DeleteRole(ctx context.Context, id int64) error                { return nil }
func (s *rbacStub) CountRoleUsers(ctx context.Context, roleID int64) (int, error) { return 0, nil }

func (s *rbacStub) ListPermissions(ctx context.Context) ([]rbac.Permission, error) { return nil, nil }

func (s *rbacStub) UpsertPermission(ctx context.Context, perm rbac.Permission) (rbac.Permission, error) {
	return perm, nil
}

func (s *rbacStub) ListRolePermissions(ctx context.Context, roleID int64) ([]rbac.Permission, error) {
	return nil, nil
}

func (s *rbacStub) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return nil
}

func (s *rbacStub) AssignRole(ctx context.Context, userID, roleID int64) error {
	s.granted[userID] = append(s.granted[userID], shared.RoleManager)
	return nil
}

func (s *rbacStub) RemoveRole(ctx context.Context, userID, roleID int64) error { return nil }

func (s *rbacStub) SyncUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return nil
}

func (s *rbacStub) RolesForUser(ctx context.Context, userID int64) ([]rbac.Role, error) {
	return nil, nil
}

func (s *rbacStub) ResolvePrincipal(ctx context.Context, userID int64) (*authz.Principal, error) {
	return nil, shared.ErrNotFound
}

func ptr(v int64) *int64 { return &v }

func newTestService() (*Service, *mockRepo, *rbacStub) {
	repo := newMockRepo()
	stub := &rbacStub{granted: make(map[int64][]string)}
	svc := NewService(repo, rbac.NewService(stub), authz.NewAuthorizer())
	return svc, repo, stub
}

func adminPrincipal(id int64) *authz.Principal {
	return authz.NewPrincipal(id, nil, []string{shared.RoleAdmin}, nil)
}

func managerPrincipal(id, deptID int64) *authz.Principal {
	return authz.NewPrincipal(id, ptr(deptID), []string{shared.RoleManager},
		[]string{shared.PermDepartmentsView, shared.PermDepartmentsUpdate})
}

func staffPrincipal(id, deptID int64) *authz.Principal {
	return authz.NewPrincipal(id, ptr(deptID), []string{shared.RoleStaff}, nil)
}

func TestDeleteDepartmentWithMembers(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.depts[1] = Department{ID: 1, Name: "Engineering"}
	repo.members[1] = 4

	err := svc.Delete(context.Background(), adminPrincipal(1), 1)
	assert.ErrorIs(t, err, shared.ErrPreconditionFailed)
	_, exists := repo.depts[1]
	assert.True(t, exists)
}

func TestDeleteEmptyDepartment(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.depts[1] = Department{ID: 1, Name: "Defunct"}

	require.NoError(t, svc.Delete(context.Background(), adminPrincipal(1), 1))
	_, exists := repo.depts[1]
	assert.False(t, exists)
}

func TestAssignManagerAdminOnly(t *testing.T) {
	svc, repo, stub := newTestService()
	repo.depts[1] = Department{ID: 1, Name: "Engineering"}

	_, err := svc.AssignManager(context.Background(), managerPrincipal(5, 1), 1, 9)
	var denied *authz.DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, shared.RoleAdmin, denied.Decision.RequiredRole)

	dept, err := svc.AssignManager(context.Background(), adminPrincipal(1), 1, 9)
	require.NoError(t, err)
	require.NotNil(t, dept.ManagerID)
	assert.EqualValues(t, 9, *dept.ManagerID)
	assert.Contains(t, stub.granted[9], shared.RoleManager)
}

func TestUpdateOnlyByOwnManager(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.depts[1] = Department{ID: 1, Name: "Engineering"}
	repo.depts[2] = Department{ID: 2, Name: "Support"}

	_, err := svc.Update(context.Background(), managerPrincipal(5, 1), 1, Input{Name: "Platform"})
	require.NoError(t, err)
	assert.Equal(t, "Platform", repo.depts[1].Name)

	_, err = svc.Update(context.Background(), managerPrincipal(5, 1), 2, Input{Name: "Hijacked"})
	var denied *authz.DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "Support", repo.depts[2].Name)
}

func TestUpdateManagerReassignmentIsAdminOnly(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.depts[1] = Department{ID: 1, Name: "Engineering", ManagerID: ptr(5)}

	_, err := svc.Update(context.Background(), managerPrincipal(5, 1), 1, Input{Name: "Engineering", ManagerID: ptr(9)})
	require.NoError(t, err)
	require.NotNil(t, repo.depts[1].ManagerID)
	assert.EqualValues(t, 5, *repo.depts[1].ManagerID, "manager caller cannot hand off the department")

	_, err = svc.Update(context.Background(), adminPrincipal(1), 1, Input{Name: "Engineering", ManagerID: ptr(9)})
	require.NoError(t, err)
	assert.EqualValues(t, 9, *repo.depts[1].ManagerID)
}

func TestGetRequiresMembership(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.depts[1] = Department{ID: 1, Name: "Engineering"}

	_, err := svc.Get(context.Background(), staffPrincipal(7, 1), 1)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), staffPrincipal(7, 2), 1)
	var denied *authz.DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, authz.ReasonScopeMismatch, denied.Decision.Reason)
}

func TestStatisticsUsesViewPolicy(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.depts[1] = Department{ID: 1, Name: "Engineering"}
	repo.members[1] = 2

	stats, err := svc.DepartmentStatistics(context.Background(), managerPrincipal(5, 1), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTasks)
	assert.Equal(t, 2, stats.Members)

	_, err = svc.DepartmentStatistics(context.Background(), managerPrincipal(5, 2), 1)
	var denied *authz.DeniedError
	require.True(t, errors.As(err, &denied))
}

func TestListDeniedWithoutPermission(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.List(context.Background(), staffPrincipal(7, 1), "")
	var denied *authz.DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, shared.PermDepartmentsView, denied.Decision.RequiredPermission)
}

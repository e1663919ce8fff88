package roles

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/rbac"
	"github.com/taskdeck/taskdeck/internal/shared"
)

type stubRepo struct {
	perms     map[int64]rbac.Permission
	roles     map[int64]rbac.Role
	grants    map[int64][]int64
	userRoles map[int64]int64
}

func newStubRepo() *stubRepo {
	s := &stubRepo{
		perms:     map[int64]rbac.Permission{},
		roles:     map[int64]rbac.Role{},
		grants:    map[int64][]int64{},
		userRoles: map[int64]int64{},
	}
	var id int64
	for _, name := range shared.CatalogNames() {
		id++
		s.perms[id] = rbac.Permission{ID: id, Name: name, DisplayName: name}
	}
	s.roles[1] = rbac.Role{ID: 1, Name: rbac.RoleSuperAdmin, DisplayName: "Super Admin"}
	s.roles[2] = rbac.Role{ID: 2, Name: rbac.RoleManager, DisplayName: "Manager"}
	s.roles[3] = rbac.Role{ID: 3, Name: rbac.RoleUser, DisplayName: "User"}
	return s
}

func (s *stubRepo) permIDByName(name string) int64 {
	for id, p := range s.perms {
		if p.Name == name {
			return id
		}
	}
	return 0
}

func (s *stubRepo) ListPermissions(context.Context) ([]rbac.Permission, error) {
	out := make([]rbac.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubRepo) EnsurePermission(_ context.Context, name, displayName string) (*rbac.Permission, error) {
	if id := s.permIDByName(name); id != 0 {
		p := s.perms[id]
		return &p, nil
	}
	id := int64(len(s.perms) + 1)
	s.perms[id] = rbac.Permission{ID: id, Name: name, DisplayName: displayName}
	p := s.perms[id]
	return &p, nil
}

func (s *stubRepo) FilterPermissionIDs(_ context.Context, ids []int64) (map[int64]struct{}, error) {
	known := map[int64]struct{}{}
	for _, id := range ids {
		if _, ok := s.perms[id]; ok {
			known[id] = struct{}{}
		}
	}
	return known, nil
}

func (s *stubRepo) ListRoles(context.Context) ([]rbac.Role, error) {
	out := make([]rbac.Role, 0, len(s.roles))
	for id := int64(1); id <= int64(len(s.roles)); id++ {
		out = append(out, s.roles[id])
	}
	return out, nil
}

func (s *stubRepo) GetRole(_ context.Context, id int64) (*rbac.Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &role, nil
}

func (s *stubRepo) GetRoleByName(_ context.Context, name string) (*rbac.Role, error) {
	for _, role := range s.roles {
		if role.Name == name {
			r := role
			return &r, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) EnsureRole(_ context.Context, name, displayName string) (*rbac.Role, error) {
	if role, err := s.GetRoleByName(context.Background(), name); err == nil {
		return role, nil
	}
	id := int64(len(s.roles) + 1)
	s.roles[id] = rbac.Role{ID: id, Name: name, DisplayName: displayName}
	role := s.roles[id]
	return &role, nil
}

func (s *stubRepo) RolePermissions(_ context.Context, roleID int64) ([]rbac.Permission, error) {
	var out []rbac.Permission
	for _, id := range s.grants[roleID] {
		out = append(out, s.perms[id])
	}
	return out, nil
}

func (s *stubRepo) ReplaceRolePermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	s.grants[roleID] = append([]int64(nil), permissionIDs...)
	return nil
}

func (s *stubRepo) UserRole(_ context.Context, userID int64) (*rbac.Role, error) {
	roleID, ok := s.userRoles[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s.GetRole(context.Background(), roleID)
}

func (s *stubRepo) ReplaceUserRole(_ context.Context, userID, roleID int64) error {
	s.userRoles[userID] = roleID
	return nil
}

func (s *stubRepo) UserIdentity(_ context.Context, userID int64) (string, string, error) {
	return "Test User", "test@taskdeck.io", nil
}

func newRouter(repo *stubRepo, principal *rbac.Principal) http.Handler {
	service := rbac.NewService(repo)
	handler := NewHandler(slog.Default(), service, rbac.Middleware{})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if principal != nil {
				req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), principal))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/roles", handler.MountRoutes)
	return r
}

func adminPrincipal() *rbac.Principal {
	perms := map[string]struct{}{}
	for _, name := range shared.CatalogNames() {
		perms[name] = struct{}{}
	}
	return &rbac.Principal{
		UserID:      1,
		Role:        &rbac.Role{ID: 1, Name: rbac.RoleSuperAdmin, DisplayName: "Super Admin"},
		Permissions: perms,
	}
}

func doJSON(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListRolesResolvesPermissions(t *testing.T) {
	repo := newStubRepo()
	repo.grants[3] = []int64{repo.permIDByName(shared.PermTasksRead)}
	router := newRouter(repo, adminPrincipal())

	rec := doJSON(t, router, http.MethodGet, "/roles/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Status bool       `json:"status"`
		Data   []Resource `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Status)
	require.Len(t, envelope.Data, 3)

	byName := map[string]Resource{}
	for _, res := range envelope.Data {
		byName[res.Name] = res
	}
	require.Len(t, byName[rbac.RoleSuperAdmin].Permissions, len(shared.CatalogNames()))
	require.Len(t, byName[rbac.RoleUser].Permissions, 1)
	require.Empty(t, byName[rbac.RoleManager].Permissions)
}

func TestEditSuperAdminForbidden(t *testing.T) {
	router := newRouter(newStubRepo(), adminPrincipal())

	rec := doJSON(t, router, http.MethodGet, "/roles/1", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "Super Admin has all permissions and cannot be edited.")
}

func TestEditReturnsCatalogAndGrantIDs(t *testing.T) {
	repo := newStubRepo()
	taskRead := repo.permIDByName(shared.PermTasksRead)
	repo.grants[3] = []int64{taskRead}
	router := newRouter(repo, adminPrincipal())

	rec := doJSON(t, router, http.MethodGet, "/roles/3", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data editResource `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, rbac.RoleUser, envelope.Data.Role.Name)
	require.Len(t, envelope.Data.AllPermissions, len(shared.CatalogNames()))
	require.Equal(t, []int64{taskRead}, envelope.Data.RolePermissionIDs)
}

func TestUpdatePermissionsReplacesSet(t *testing.T) {
	repo := newStubRepo()
	a := repo.permIDByName(shared.PermTasksRead)
	b := repo.permIDByName(shared.PermTasksCreate)
	c := repo.permIDByName(shared.PermTasksUpdate)
	repo.grants[2] = []int64{a, b}
	router := newRouter(repo, adminPrincipal())

	body, _ := json.Marshal(map[string]any{"permissions": []int64{b, c}})
	rec := doJSON(t, router, http.MethodPut, "/roles/2", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Permissions updated successfully for Manager")
	require.ElementsMatch(t, []int64{b, c}, repo.grants[2])
}

func TestUpdatePermissionsSuperAdminForbidden(t *testing.T) {
	repo := newStubRepo()
	router := newRouter(repo, adminPrincipal())

	rec := doJSON(t, router, http.MethodPut, "/roles/1", `{"permissions":[1]}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "Super Admin permissions cannot be modified.")
	require.Empty(t, repo.grants[1])
}

func TestUpdatePermissionsUnknownID(t *testing.T) {
	repo := newStubRepo()
	router := newRouter(repo, adminPrincipal())

	rec := doJSON(t, router, http.MethodPut, "/roles/2", `{"permissions":[9999]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "Unknown permission id 9999.")
}

func TestRoutesRequireAuthentication(t *testing.T) {
	router := newRouter(newStubRepo(), nil)

	rec := doJSON(t, router, http.MethodGet, "/roles/", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoutesRequirePermission(t *testing.T) {
	unprivileged := &rbac.Principal{
		UserID:      5,
		Role:        &rbac.Role{ID: 3, Name: rbac.RoleUser},
		Permissions: map[string]struct{}{shared.PermTasksRead: {}},
	}
	router := newRouter(newStubRepo(), unprivileged)

	rec := doJSON(t, router, http.MethodGet, "/roles/", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "Forbidden.")
}

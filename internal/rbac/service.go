package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/taskdeck/taskdeck/internal/platform/httpx"
	"github.com/taskdeck/taskdeck/internal/shared"
)

// Service orchestrates the permission catalog, the role registry and
// principal resolution.
type Service struct {
	repo Repository
}

// NewService constructs a Service backed by the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListPermissions returns the full catalog ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// EnsurePermission upserts a catalog entry. The catalog is additive only;
// there is no delete path.
func (s *Service) EnsurePermission(ctx context.Context, name, displayName string) (*Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, httpx.Validationf("Permission name is required.")
	}
	if displayName == "" {
		displayName = name
	}
	return s.repo.EnsurePermission(ctx, name, displayName)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (*Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, httpx.NotFoundf("Role not found.")
		}
		return nil, err
	}
	return role, nil
}

// GetRoleByName fetches a role by its unique name.
func (s *Service) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	role, err := s.repo.GetRoleByName(ctx, name)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, httpx.NotFoundf("Role not found.")
		}
		return nil, err
	}
	return role, nil
}

// PermissionsOf resolves the permission set a role grants. For the
// super-admin role this is the entire current catalog computed live, not
// the stored association, so newly added permissions flow to super-admin
// without any sync step.
func (s *Service) PermissionsOf(ctx context.Context, role *Role) ([]Permission, error) {
	if role == nil {
		return nil, nil
	}
	if role.Name == RoleSuperAdmin {
		return s.repo.ListPermissions(ctx)
	}
	return s.repo.RolePermissions(ctx, role.ID)
}

// SetRolePermissions replaces (not merges) the role's permission set with
// exactly the given ids. The super-admin role is immutable and unknown
// ids are rejected before anything is written.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.Name == RoleSuperAdmin {
		return httpx.Forbiddenf("Super Admin permissions cannot be modified.")
	}
	ids := dedupeIDs(permissionIDs)
	if len(ids) > 0 {
		known, err := s.repo.FilterPermissionIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := known[id]; !ok {
				return httpx.Validationf("Unknown permission id %d.", id)
			}
		}
	}
	return s.repo.ReplaceRolePermissions(ctx, roleID, ids)
}

// AssignRole gives the user the named role, replacing any previous one.
func (s *Service) AssignRole(ctx context.Context, userID int64, roleName string) error {
	role, err := s.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	return s.repo.ReplaceUserRole(ctx, userID, role.ID)
}

// Resolve builds the principal for the given user: its single role and
// the flattened, deduplicated set of permission names. A user with no
// role resolves to an empty set, so every permission check denies.
func (s *Service) Resolve(ctx context.Context, userID int64) (*Principal, error) {
	name, email, err := s.repo.UserIdentity(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, httpx.NotFoundf("User not found.")
		}
		return nil, err
	}
	principal := &Principal{
		UserID:      userID,
		Name:        name,
		Email:       email,
		Permissions: map[string]struct{}{},
	}
	role, err := s.repo.UserRole(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return principal, nil
		}
		return nil, err
	}
	principal.Role = role
	perms, err := s.PermissionsOf(ctx, role)
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		principal.Permissions[p.Name] = struct{}{}
	}
	return principal, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package rbac

import (
	"sort"
	"time"
)

// Role names with hard-coded semantics. The super-admin role always
// resolves to the full permission catalog and is immutable.
const (
	RoleSuperAdmin = "super-admin"
	RoleManager    = "manager"
	RoleUser       = "user"
)

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission represents an atomic capability, named resource.action.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// Principal describes the authenticated actor with its single resolved
// role and the flattened set of permission names that role grants. It is
// recomputed per request so role and permission edits take effect on the
// next request from an affected user.
type Principal struct {
	UserID      int64
	Name        string
	Email       string
	Role        *Role
	Permissions map[string]struct{}
}

// Can reports whether the principal holds the named permission. A
// principal without a role holds nothing and every check denies.
func (p *Principal) Can(permission string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Permissions[permission]
	return ok
}

// HasRole reports whether the principal's role carries the given name.
func (p *Principal) HasRole(name string) bool {
	return p != nil && p.Role != nil && p.Role.Name == name
}

// PermissionNames returns the sorted permission names for serialization.
func (p *Principal) PermissionNames() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.Permissions))
	for name := range p.Permissions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package rbac

import (
	"github.com/taskdeck/taskdeck/internal/platform/httpx"
)

// Guard is the single authorization decision point. The generic rule
// allows an action iff the principal's resolved permission set contains
// it; there is no role-name bypass here, super-admin passes only because
// its resolved set is total. The Check* methods are the hard-coded
// override rules layered on top; each is an absolute veto evaluated at
// the point of use, and a deny from any layer is final.
type Guard struct{}

// Authorize applies the generic permission rule.
func (Guard) Authorize(p *Principal, permission string) error {
	if p == nil {
		return httpx.ErrUnauthorized
	}
	if !p.Can(permission) {
		return httpx.Forbiddenf("Forbidden.")
	}
	return nil
}

// CheckRoleMutable denies any attempt to view-for-edit or rewrite the
// permission set of the super-admin role, independent of the actor.
func (Guard) CheckRoleMutable(role *Role) error {
	if role != nil && role.Name == RoleSuperAdmin {
		return httpx.Forbiddenf("Super Admin has all permissions and cannot be edited.")
	}
	return nil
}

// CheckUserDelete enforces the account-protection vetoes on user
// deletion: the super-admin account is never deletable, and a principal
// may never delete itself.
func (Guard) CheckUserDelete(actor *Principal, targetID int64, targetRole *Role) error {
	if targetRole != nil && targetRole.Name == RoleSuperAdmin {
		return httpx.Forbiddenf("You cannot delete the Super Admin account.")
	}
	if actor != nil && actor.UserID == targetID {
		return httpx.Validationf("You cannot delete your own account.")
	}
	return nil
}

// CheckUserUpdate enforces the escalation vetoes on user modification: a
// non-super-admin actor may neither touch a super-admin account nor hand
// out the super-admin role. newRoleName is empty when the request does
// not change the role.
func (Guard) CheckUserUpdate(actor *Principal, targetRole *Role, newRoleName string) error {
	if targetRole != nil && targetRole.Name == RoleSuperAdmin && !actor.HasRole(RoleSuperAdmin) {
		return httpx.Forbiddenf("You cannot modify a Super Admin account.")
	}
	if newRoleName == RoleSuperAdmin && !actor.HasRole(RoleSuperAdmin) {
		return httpx.Forbiddenf("You cannot assign the Super Admin role.")
	}
	return nil
}

// CheckAssignee validates the target of a task assignment. The assignee
// must exist and hold exactly the regular user role; this runs after the
// generic tasks.create/tasks.update gate has already passed.
func (Guard) CheckAssignee(role *Role) error {
	if role == nil || role.Name != RoleUser {
		return httpx.Validationf("Assignee must be a regular user.")
	}
	return nil
}

// CanAccessTask is the task visibility predicate: privileged roles see
// every row, everyone else only rows they created or are assigned to. It
// composes with, and is independent of, the generic tasks.* permission
// gate.
func (Guard) CanAccessTask(p *Principal, createdBy int64, assignedTo *int64) bool {
	if p == nil {
		return false
	}
	if p.HasRole(RoleSuperAdmin) || p.HasRole(RoleManager) {
		return true
	}
	if createdBy == p.UserID {
		return true
	}
	return assignedTo != nil && *assignedTo == p.UserID
}

// TaskScopeUserID returns the user id task queries must be scoped to,
// nil when the principal sees all rows.
func (g Guard) TaskScopeUserID(p *Principal) *int64 {
	if p == nil {
		return new(int64)
	}
	if p.HasRole(RoleSuperAdmin) || p.HasRole(RoleManager) {
		return nil
	}
	id := p.UserID
	return &id
}

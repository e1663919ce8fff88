package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/platform/httpx"
	"github.com/taskdeck/taskdeck/internal/shared"
)

func principalWith(userID int64, roleName string, perms ...string) *Principal {
	p := &Principal{UserID: userID, Permissions: map[string]struct{}{}}
	if roleName != "" {
		p.Role = &Role{ID: userID, Name: roleName, DisplayName: roleName}
	}
	for _, perm := range perms {
		p.Permissions[perm] = struct{}{}
	}
	return p
}

func TestGuardAuthorize(t *testing.T) {
	var guard Guard

	manager := principalWith(1, RoleManager, shared.PermTasksRead, shared.PermTasksUpdate)
	assert.NoError(t, guard.Authorize(manager, shared.PermTasksRead))

	err := guard.Authorize(manager, shared.PermUsersDelete)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	err = guard.Authorize(nil, shared.PermTasksRead)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestGuardNoRoleNameBypass(t *testing.T) {
	var guard Guard

	// The generic rule only consults the resolved permission set; a
	// super-admin principal with an empty set is denied like anyone else.
	bareSuper := principalWith(1, RoleSuperAdmin)
	err := guard.Authorize(bareSuper, shared.PermUsersRead)
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestGuardCheckRoleMutable(t *testing.T) {
	var guard Guard

	err := guard.CheckRoleMutable(&Role{Name: RoleSuperAdmin})
	require.ErrorIs(t, err, httpx.ErrForbidden)

	assert.NoError(t, guard.CheckRoleMutable(&Role{Name: RoleManager}))
	assert.NoError(t, guard.CheckRoleMutable(nil))
}

func TestGuardCheckUserDelete(t *testing.T) {
	var guard Guard
	actor := principalWith(10, RoleManager, shared.PermUsersDelete)

	// Rule: the super-admin account is never deletable, whoever asks.
	err := guard.CheckUserDelete(actor, 2, &Role{Name: RoleSuperAdmin})
	require.ErrorIs(t, err, httpx.ErrForbidden)

	superActor := principalWith(1, RoleSuperAdmin)
	err = guard.CheckUserDelete(superActor, 2, &Role{Name: RoleSuperAdmin})
	require.ErrorIs(t, err, httpx.ErrForbidden)

	// Rule: self-deletion is rejected as a client error.
	err = guard.CheckUserDelete(actor, 10, &Role{Name: RoleUser})
	require.ErrorIs(t, err, httpx.ErrValidation)

	assert.NoError(t, guard.CheckUserDelete(actor, 2, &Role{Name: RoleUser}))
	assert.NoError(t, guard.CheckUserDelete(actor, 2, nil))
}

func TestGuardCheckUserUpdate(t *testing.T) {
	var guard Guard
	manager := principalWith(10, RoleManager, shared.PermUsersUpdate)
	super := principalWith(1, RoleSuperAdmin)

	// Non-super actors may not touch a super-admin account.
	err := guard.CheckUserUpdate(manager, &Role{Name: RoleSuperAdmin}, "")
	require.ErrorIs(t, err, httpx.ErrForbidden)
	assert.NoError(t, guard.CheckUserUpdate(super, &Role{Name: RoleSuperAdmin}, ""))

	// Non-super actors may not hand out the super-admin role.
	err = guard.CheckUserUpdate(manager, &Role{Name: RoleUser}, RoleSuperAdmin)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	assert.NoError(t, guard.CheckUserUpdate(super, &Role{Name: RoleUser}, RoleSuperAdmin))

	assert.NoError(t, guard.CheckUserUpdate(manager, &Role{Name: RoleUser}, RoleManager))
	assert.NoError(t, guard.CheckUserUpdate(manager, nil, ""))
}

func TestGuardCheckAssignee(t *testing.T) {
	var guard Guard

	assert.NoError(t, guard.CheckAssignee(&Role{Name: RoleUser}))

	err := guard.CheckAssignee(&Role{Name: RoleManager})
	require.ErrorIs(t, err, httpx.ErrValidation)

	err = guard.CheckAssignee(&Role{Name: RoleSuperAdmin})
	require.ErrorIs(t, err, httpx.ErrValidation)

	// A roleless target is not a regular user either.
	err = guard.CheckAssignee(nil)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestGuardCanAccessTask(t *testing.T) {
	var guard Guard
	assignee := int64(22)

	superAdmin := principalWith(1, RoleSuperAdmin)
	manager := principalWith(2, RoleManager)
	creator := principalWith(11, RoleUser, shared.PermTasksRead)
	assigned := principalWith(22, RoleUser, shared.PermTasksRead)
	outsider := principalWith(33, RoleUser, shared.PermTasksRead)

	assert.True(t, guard.CanAccessTask(superAdmin, 11, &assignee))
	assert.True(t, guard.CanAccessTask(manager, 11, &assignee))
	assert.True(t, guard.CanAccessTask(creator, 11, &assignee))
	assert.True(t, guard.CanAccessTask(assigned, 11, &assignee))

	// Holding the generic permission does not open rows outside the scope.
	assert.False(t, guard.CanAccessTask(outsider, 11, &assignee))
	assert.False(t, guard.CanAccessTask(outsider, 11, nil))
	assert.False(t, guard.CanAccessTask(nil, 11, &assignee))
}

func TestGuardTaskScopeUserID(t *testing.T) {
	var guard Guard

	assert.Nil(t, guard.TaskScopeUserID(principalWith(1, RoleSuperAdmin)))
	assert.Nil(t, guard.TaskScopeUserID(principalWith(2, RoleManager)))

	scope := guard.TaskScopeUserID(principalWith(33, RoleUser))
	require.NotNil(t, scope)
	assert.Equal(t, int64(33), *scope)
}

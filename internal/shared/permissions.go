package shared

// Permission names gating the HTTP surface. Names follow the
// resource.action convention and must match the seeded catalog.
const (
	PermUsersRead   = "users.read"
	PermUsersCreate = "users.create"
	PermUsersUpdate = "users.update"
	PermUsersDelete = "users.delete"

	PermRolesRead   = "roles.read"
	PermRolesCreate = "roles.create"
	PermRolesUpdate = "roles.update"
	PermRolesDelete = "roles.delete"

	PermPermissionsRead   = "permissions.read"
	PermPermissionsCreate = "permissions.create"
	PermPermissionsUpdate = "permissions.update"
	PermPermissionsDelete = "permissions.delete"

	PermTasksRead   = "tasks.read"
	PermTasksCreate = "tasks.create"
	PermTasksUpdate = "tasks.update"
	PermTasksDelete = "tasks.delete"
)

// CatalogNames lists every permission the seeded catalog starts with.
func CatalogNames() []string {
	return []string{
		PermUsersRead,
		PermUsersCreate,
		PermUsersUpdate,
		PermUsersDelete,
		PermRolesRead,
		PermRolesCreate,
		PermRolesUpdate,
		PermRolesDelete,
		PermPermissionsRead,
		PermPermissionsCreate,
		PermPermissionsUpdate,
		PermPermissionsDelete,
		PermTasksRead,
		PermTasksCreate,
		PermTasksUpdate,
		PermTasksDelete,
	}
}

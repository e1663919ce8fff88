package users

import (
	"time"

	"github.com/taskdeck/taskdeck/internal/rbac"
)

// User represents a user account for management, with its single
// resolved role (nil when the account has none).
type User struct {
	ID        int64
	Name      string
	Email     string
	Role      *rbac.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListFilters narrows and paginates user listings.
type ListFilters struct {
	Search  string
	Page    int
	PerPage int
}

package rbac

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskdeck/taskdeck/internal/platform/db"
	"github.com/taskdeck/taskdeck/internal/shared"
)

// Repository defines persistence operations for the permission catalog,
// the role registry and the user-role association.
type Repository interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	EnsurePermission(ctx context.Context, name, displayName string) (*Permission, error)
	FilterPermissionIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (*Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	EnsureRole(ctx context.Context, name, displayName string) (*Role, error)

	RolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error

	UserRole(ctx context.Context, userID int64) (*Role, error)
	ReplaceUserRole(ctx context.Context, userID, roleID int64) error
	UserIdentity(ctx context.Context, userID int64) (name, email string, err error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListPermissions returns the catalog ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, display_name FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// EnsurePermission upserts a catalog entry by name.
func (r *PGRepository) EnsurePermission(ctx context.Context, name, displayName string) (*Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (name, display_name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING id, name, display_name`, name, displayName).Scan(&p.ID, &p.Name, &p.DisplayName)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FilterPermissionIDs returns the subset of ids that exist in the catalog.
func (r *PGRepository) FilterPermissionIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM permissions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	known := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = struct{}{}
	}
	return known, rows.Err()
}

// ListRoles returns all roles ordered by id.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, display_name, created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (*Role, error) {
	return r.scanRole(r.pool.QueryRow(ctx, `SELECT id, name, display_name, created_at, updated_at FROM roles WHERE id = $1`, id))
}

// GetRoleByName fetches a role by its unique name.
func (r *PGRepository) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	return r.scanRole(r.pool.QueryRow(ctx, `SELECT id, name, display_name, created_at, updated_at FROM roles WHERE name = $1`, name))
}

// EnsureRole upserts a role by name.
func (r *PGRepository) EnsureRole(ctx context.Context, name, displayName string) (*Role, error) {
	return r.scanRole(r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, display_name, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = NOW()
		RETURNING id, name, display_name, created_at, updated_at`, name, displayName))
}

// RolePermissions returns the permissions persisted for a role, ordered by name.
func (r *PGRepository) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.display_name
		FROM permissions p
		JOIN role_permission rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ReplaceRolePermissions swaps the role's permission set for exactly the
// given ids as one transaction, so concurrent readers never observe a
// partial union of the old and new sets.
func (r *PGRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permission WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, id := range permissionIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO role_permission (role_id, permission_id) VALUES ($1, $2)`, roleID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// UserRole fetches the user's single associated role.
func (r *PGRepository) UserRole(ctx context.Context, userID int64) (*Role, error) {
	return r.scanRole(r.pool.QueryRow(ctx, `
		SELECT ro.id, ro.name, ro.display_name, ro.created_at, ro.updated_at
		FROM roles ro
		JOIN role_user ru ON ru.role_id = ro.id
		WHERE ru.user_id = $1`, userID))
}

// ReplaceUserRole swaps the user's role association. Re-assignment
// replaces rather than adds, keeping the single-role invariant.
func (r *PGRepository) ReplaceUserRole(ctx context.Context, userID, roleID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_user WHERE user_id = $1`, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO role_user (role_id, user_id) VALUES ($1, $2)`, roleID, userID)
		return err
	})
}

// UserIdentity fetches the name and email used to label a principal.
func (r *PGRepository) UserIdentity(ctx context.Context, userID int64) (string, string, error) {
	var name, email string
	err := r.pool.QueryRow(ctx, `SELECT name, email FROM users WHERE id = $1`, userID).Scan(&name, &email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", "", shared.ErrNotFound
		}
		return "", "", err
	}
	return name, email, nil
}

func (r *PGRepository) scanRole(row pgx.Row) (*Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

var _ Repository = (*PGRepository)(nil)

package users

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskdeck/taskdeck/internal/platform/db"
	"github.com/taskdeck/taskdeck/internal/rbac"
	"github.com/taskdeck/taskdeck/internal/shared"
)

// ErrEmailTaken indicates the unique email constraint fired on update.
var ErrEmailTaken = errors.New("users: email already taken")

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filters ListFilters) ([]User, int, error)
	Get(ctx context.Context, id int64) (*User, error)
	PasswordHash(ctx context.Context, id int64) (string, error)
	EmailTakenByOther(ctx context.Context, email string, excludeID int64) (bool, error)
	UpdateNameEmail(ctx context.Context, id int64, name, email string) (*User, error)
	UpdateWithRole(ctx context.Context, id int64, name, email string, roleID *int64) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `u.id, u.name, u.email, u.created_at, u.updated_at,
	ro.id, ro.name, ro.display_name, ro.created_at, ro.updated_at`

const userFromClause = `FROM users u
	LEFT JOIN role_user ru ON ru.user_id = u.id
	LEFT JOIN roles ro ON ro.id = ru.role_id`

// List returns users ordered by newest first. Accounts holding the
// super-admin role are excluded from enumeration.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]User, int, error) {
	where := ` WHERE NOT EXISTS (
		SELECT 1 FROM role_user sru
		JOIN roles sro ON sro.id = sru.role_id
		WHERE sru.user_id = u.id AND sro.name = $1)`
	args := []any{rbac.RoleSuperAdmin}
	if filters.Search != "" {
		where += ` AND (u.name ILIKE $2 OR u.email ILIKE $2)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users u`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filters.PerPage
	if perPage <= 0 {
		perPage = shared.DefaultPerPage
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage

	query := `SELECT ` + userColumns + ` ` + userFromClause + where + ` ORDER BY u.id DESC`
	args = append(args, perPage, offset)
	query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, rows.Err()
}

// Get fetches a user by ID with its role.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` `+userFromClause+` WHERE u.id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, shared.ErrNotFound
	}
	return scanUser(rows)
}

// PasswordHash fetches the stored credential for verification.
func (r *Repository) PasswordHash(ctx context.Context, id int64) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return hash, nil
}

// EmailTakenByOther reports whether another account already owns the email.
func (r *Repository) EmailTakenByOther(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`, email, excludeID).Scan(&taken)
	return taken, err
}

// UpdateNameEmail rewrites the mutable identity fields.
func (r *Repository) UpdateNameEmail(ctx context.Context, id int64, name, email string) (*User, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET name = $2, email = $3, updated_at = NOW() WHERE id = $1`, id, name, email)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return r.Get(ctx, id)
}

// UpdateWithRole rewrites the identity fields and, when roleID is set,
// replaces the user's role, both inside one transaction so a failed
// assignment rolls the identity change back too.
func (r *Repository) UpdateWithRole(ctx context.Context, id int64, name, email string, roleID *int64) (*User, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET name = $2, email = $3, updated_at = NOW() WHERE id = $1`, id, name, email)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		if roleID == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_user WHERE user_id = $1`, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO role_user (user_id, role_id) VALUES ($1, $2)`, id, *roleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// UpdatePassword replaces the stored credential.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a user. Tasks created by the user cascade away, tasks
// assigned to the user get their assignee nulled; both are enforced by
// the schema's foreign keys.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUser(rows pgx.Rows) (*User, error) {
	var (
		user        User
		roleID      *int64
		roleName    *string
		roleDisplay *string
		roleCreated *time.Time
		roleUpdated *time.Time
	)
	if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt,
		&roleID, &roleName, &roleDisplay, &roleCreated, &roleUpdated); err != nil {
		return nil, err
	}
	if roleID != nil {
		role := rbac.Role{ID: *roleID, Name: *roleName, DisplayName: *roleDisplay}
		if roleCreated != nil {
			role.CreatedAt = *roleCreated
		}
		if roleUpdated != nil {
			role.UpdatedAt = *roleUpdated
		}
		user.Role = &role
	}
	return &user, nil
}

var _ RepositoryPort = (*Repository)(nil)

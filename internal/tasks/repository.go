package tasks

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskdeck/taskdeck/internal/shared"
)

// RepositoryPort defines data access methods for tasks.
type RepositoryPort interface {
	List(ctx context.Context, filters ListFilters) ([]Task, int, error)
	Get(ctx context.Context, id int64) (*Task, error)
	Create(ctx context.Context, task *Task) (*Task, error)
	Update(ctx context.Context, task *Task) (*Task, error)
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

const taskColumns = `t.id, t.title, t.description, t.status, t.created_by, t.assigned_to,
	t.created_at, t.updated_at, c.name, a.name`

const taskFromClause = `FROM tasks t
	JOIN users c ON c.id = t.created_by
	LEFT JOIN users a ON a.id = t.assigned_to`

// List returns tasks newest first, filtered and scoped. The scope clause
// limits rows to those the scoped user created or is assigned to.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Task, int, error) {
	where := " WHERE TRUE"
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filters.ScopeUserID != nil {
		p := arg(*filters.ScopeUserID)
		where += " AND (t.created_by = " + p + " OR t.assigned_to = " + p + ")"
	}
	if filters.Mine != nil {
		p := arg(*filters.Mine)
		where += " AND (t.created_by = " + p + " OR t.assigned_to = " + p + ")"
	}
	if filters.Search != "" {
		p := arg("%" + filters.Search + "%")
		where += " AND (t.title ILIKE " + p + " OR t.description ILIKE " + p + ")"
	}
	if filters.Status != "" {
		where += " AND t.status = " + arg(string(filters.Status))
	}
	if filters.AssignedTo != nil {
		where += " AND t.assigned_to = " + arg(*filters.AssignedTo)
	}
	if filters.CreatedBy != nil {
		where += " AND t.created_by = " + arg(*filters.CreatedBy)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks t`+where, args...).Scan(&total); err != nil {
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
	query := `SELECT ` + taskColumns + ` ` + taskFromClause + where +
		` ORDER BY t.id DESC LIMIT ` + arg(perPage) + ` OFFSET ` + arg((page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *task)
	}
	return out, total, rows.Err()
}

// Get fetches a task with resolved creator and assignee names.
func (r *Repository) Get(ctx context.Context, id int64) (*Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` `+taskFromClause+` WHERE t.id = $1`, id)
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
	return scanTask(rows)
}

// Create inserts the task and returns it re-read with joined names.
func (r *Repository) Create(ctx context.Context, task *Task) (*Task, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tasks (title, description, status, created_by, assigned_to, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
		task.Title, task.Description, string(task.Status), task.CreatedBy, task.AssignedTo,
	).Scan(&task.ID)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, task.ID)
}

// Update rewrites every mutable column.
func (r *Repository) Update(ctx context.Context, task *Task) (*Task, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET title = $2, description = $3, status = $4, assigned_to = $5, updated_at = NOW() WHERE id = $1`,
		task.ID, task.Title, task.Description, string(task.Status), task.AssignedTo,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return r.Get(ctx, task.ID)
}

// Delete removes a task.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanTask(rows pgx.Rows) (*Task, error) {
	var (
		task        Task
		description *string
		status      string
	)
	if err := rows.Scan(&task.ID, &task.Title, &description, &status, &task.CreatedBy, &task.AssignedTo,
		&task.CreatedAt, &task.UpdatedAt, &task.CreatorName, &task.AssigneeName); err != nil {
		return nil, err
	}
	if description != nil {
		task.Description = *description
	}
	task.Status = Status(status)
	return &task, nil
}

var _ RepositoryPort = (*Repository)(nil)

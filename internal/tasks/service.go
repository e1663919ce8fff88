package tasks

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/taskdeck/taskdeck/internal/platform/httpx"
	"github.com/taskdeck/taskdeck/internal/rbac"
	"github.com/taskdeck/taskdeck/internal/shared"
)

// AssigneeDirectory resolves a user's role for assignment validation.
type AssigneeDirectory interface {
	Resolve(ctx context.Context, userID int64) (*rbac.Principal, error)
}

// Service implements task CRUD with per-principal visibility and the
// assignment rule: only accounts holding exactly the regular user role
// may be assigned work.
type Service struct {
	repo      RepositoryPort
	directory AssigneeDirectory
	guard     rbac.Guard
	audit     *shared.AuditLogger
	logger    *slog.Logger
}

// NewService wires the service.
func NewService(repo RepositoryPort, directory AssigneeDirectory, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, directory: directory, audit: audit, logger: logger}
}

// CreateInput carries a new task. A zero Status defaults to todo.
type CreateInput struct {
	Title       string
	Description string
	Status      Status
	AssignedTo  *int64
}

// UpdateInput carries a partial task update. Nil fields keep their
// current value; AssignedTo distinguishes "not sent" from "clear".
type UpdateInput struct {
	Title       *string
	Description *string
	Status      *Status
	AssignedTo  AssigneePatch
}

// AssigneePatch is a tri-state assignee change: absent, clear, or set.
type AssigneePatch struct {
	Set bool
	ID  *int64
}

// List returns the page of tasks the actor may see, after applying the
// request filters. Visibility scoping comes from the principal alone.
func (s *Service) List(ctx context.Context, actor *rbac.Principal, filters ListFilters) ([]Task, *shared.Pagination, error) {
	filters.ScopeUserID = s.guard.TaskScopeUserID(actor)
	out, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, nil, err
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	perPage := filters.PerPage
	if perPage <= 0 {
		perPage = shared.DefaultPerPage
	}
	meta := shared.NewPagination(page, perPage, total)
	return out, &meta, nil
}

// Get fetches a task the actor may see. A task outside the actor's
// visibility answers 403, not 404, so its existence is acknowledged but
// its content withheld.
func (s *Service) Get(ctx context.Context, actor *rbac.Principal, id int64) (*Task, error) {
	task, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, httpx.NotFoundf("Task not found.")
		}
		return nil, err
	}
	if !s.guard.CanAccessTask(actor, task.CreatedBy, task.AssignedTo) {
		return nil, httpx.Forbiddenf("Not allowed.")
	}
	return task, nil
}

// Create inserts a task owned by the actor.
func (s *Service) Create(ctx context.Context, actor *rbac.Principal, in CreateInput) (*Task, error) {
	if actor == nil {
		return nil, httpx.ErrUnauthorized
	}
	status := in.Status
	if status == "" {
		status = StatusTodo
	}
	if !status.IsValid() {
		return nil, httpx.Validationf("The selected status is invalid.")
	}
	if err := s.checkAssignee(ctx, in.AssignedTo); err != nil {
		return nil, err
	}
	task := &Task{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      status,
		CreatedBy:   actor.UserID,
		AssignedTo:  in.AssignedTo,
	}
	created, err := s.repo.Create(ctx, task)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "task.create", created.ID, map[string]any{"status": string(created.Status)})
	return created, nil
}

// Update applies a partial update to a task the actor may see.
func (s *Service) Update(ctx context.Context, actor *rbac.Principal, id int64, in UpdateInput) (*Task, error) {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		task.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, httpx.Validationf("The selected status is invalid.")
		}
		task.Status = *in.Status
	}
	if in.AssignedTo.Set {
		if err := s.checkAssignee(ctx, in.AssignedTo.ID); err != nil {
			return nil, err
		}
		task.AssignedTo = in.AssignedTo.ID
	}
	updated, err := s.repo.Update(ctx, task)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, httpx.NotFoundf("Task not found.")
		}
		return nil, err
	}
	s.record(ctx, actor, "task.update", id, map[string]any{"status": string(updated.Status)})
	return updated, nil
}

// Delete removes a task the actor may see.
func (s *Service) Delete(ctx context.Context, actor *rbac.Principal, id int64) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return httpx.NotFoundf("Task not found.")
		}
		return err
	}
	s.record(ctx, actor, "task.delete", id, nil)
	return nil
}

// checkAssignee validates an assignment target: the account must exist
// and hold exactly the regular user role. A nil target (unassigned) is
// always fine.
func (s *Service) checkAssignee(ctx context.Context, assigneeID *int64) error {
	if assigneeID == nil {
		return nil
	}
	assignee, err := s.directory.Resolve(ctx, *assigneeID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) || errors.Is(err, shared.ErrNotFound) {
			return httpx.Validationf("Assignee not found.")
		}
		return err
	}
	return s.guard.CheckAssignee(assignee.Role)
}

func (s *Service) record(ctx context.Context, actor *rbac.Principal, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	var actorID int64
	if actor != nil {
		actorID = actor.UserID
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "task",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}

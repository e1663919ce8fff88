package users

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskdeck/taskdeck/internal/auth"
	"github.com/taskdeck/taskdeck/internal/platform/httpx"
	"github.com/taskdeck/taskdeck/internal/rbac"
	"github.com/taskdeck/taskdeck/internal/shared"
)

// RoleDirectory is the slice of the role registry user administration
// needs: role lookup and permission resolution.
type RoleDirectory interface {
	GetRoleByName(ctx context.Context, name string) (*rbac.Role, error)
	PermissionsOf(ctx context.Context, role *rbac.Role) ([]rbac.Permission, error)
}

// Service implements user administration and profile self-service.
type Service struct {
	repo   RepositoryPort
	roles  RoleDirectory
	guard  rbac.Guard
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService wires the service.
func NewService(repo RepositoryPort, roles RoleDirectory, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roles, audit: audit, logger: logger}
}

// UpdateInput carries a user rewrite. A non-empty Role is the role name
// to assign, replacing any previous role; an empty Role keeps it.
type UpdateInput struct {
	Name  string
	Email string
	Role  string
}

// ProfileInput carries a partial self-service profile update. Nil fields
// keep their current value.
type ProfileInput struct {
	Name  *string
	Email *string
}

// List returns a page of users matching the filters. Super-admin
// accounts never appear in listings.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]User, *shared.Pagination, error) {
	users, total, err := s.repo.List(ctx, filters)
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
	return users, &meta, nil
}

// Get fetches a single user with its role.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, httpx.NotFoundf("User not found.")
		}
		return nil, err
	}
	return user, nil
}

// Update rewrites a user's identity fields and, when a role name is
// sent, replaces the role in the same transaction. The override rules
// run before any write: a non-super-admin actor can neither touch a
// super-admin account nor hand out the super-admin role.
func (s *Service) Update(ctx context.Context, actor *rbac.Principal, id int64, in UpdateInput) (*User, error) {
	target, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckUserUpdate(actor, target.Role, in.Role); err != nil {
		return nil, err
	}
	var roleID *int64
	if in.Role != "" {
		role, err := s.roles.GetRoleByName(ctx, in.Role)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) || errors.Is(err, shared.ErrNotFound) {
				return nil, httpx.Validationf("The selected role is invalid.")
			}
			return nil, err
		}
		if target.Role == nil || target.Role.Name != in.Role {
			roleID = &role.ID
		}
	}

	email := auth.NormalizeEmail(in.Email)
	taken, err := s.repo.EmailTakenByOther(ctx, email, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, httpx.Validationf("The email has already been taken.")
	}

	updated, err := s.repo.UpdateWithRole(ctx, id, in.Name, email, roleID)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, httpx.Validationf("The email has already been taken.")
		}
		if errors.Is(err, shared.ErrNotFound) {
			return nil, httpx.NotFoundf("User not found.")
		}
		return nil, err
	}
	meta := map[string]any{}
	if in.Role != "" {
		meta["role"] = in.Role
	}
	s.record(ctx, actor, "user.update", id, meta)
	return updated, nil
}

// Delete removes a user. The super-admin account and the actor's own
// account are protected.
func (s *Service) Delete(ctx context.Context, actor *rbac.Principal, id int64) error {
	target, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.CheckUserDelete(actor, id, target.Role); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return httpx.NotFoundf("User not found.")
		}
		return err
	}
	s.record(ctx, actor, "user.delete", id, nil)
	return nil
}

// UpdateProfile applies a partial update to the caller's own account.
func (s *Service) UpdateProfile(ctx context.Context, actor *rbac.Principal, in ProfileInput) (*User, error) {
	current, err := s.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	name := current.Name
	if in.Name != nil {
		name = *in.Name
	}
	email := current.Email
	if in.Email != nil {
		email = auth.NormalizeEmail(*in.Email)
		if email != current.Email {
			taken, err := s.repo.EmailTakenByOther(ctx, email, actor.UserID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, httpx.Validationf("The email has already been taken.")
			}
		}
	}
	updated, err := s.repo.UpdateNameEmail(ctx, actor.UserID, name, email)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, httpx.Validationf("The email has already been taken.")
		}
		return nil, err
	}
	s.record(ctx, actor, "profile.update", actor.UserID, nil)
	return updated, nil
}

// UpdatePassword rotates the caller's credential after verifying the
// current one.
func (s *Service) UpdatePassword(ctx context.Context, actor *rbac.Principal, current, next string) error {
	hash, err := s.repo.PasswordHash(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return httpx.NotFoundf("User not found.")
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(current)) != nil {
		return httpx.Validationf("Current password is incorrect.")
	}
	nextHash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, actor.UserID, string(nextHash)); err != nil {
		return err
	}
	s.record(ctx, actor, "profile.password", actor.UserID, nil)
	return nil
}

// PermissionNames resolves the sorted permission names the role grants,
// for serialization alongside a user.
func (s *Service) PermissionNames(ctx context.Context, role *rbac.Role) ([]string, error) {
	perms, err := s.roles.PermissionsOf(ctx, role)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names, nil
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
		Entity:   "user",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", "action", action, "error", err)
	}
}

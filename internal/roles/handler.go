// Package roles exposes the role management endpoints on top of the
// rbac service: listing roles with their resolved permission sets and
// rewriting a role's grants wholesale.
package roles

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/taskdeck/taskdeck/internal/platform/httpx"
	"github.com/taskdeck/taskdeck/internal/rbac"
	"github.com/taskdeck/taskdeck/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *rbac.Service
	guard     rbac.Guard
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *rbac.Service, mw rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     mw.Guard,
		rbac:      mw,
		validator: validator.New(),
	}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRolesRead))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleEdit)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesUpdate))
		r.Put("/{id}", h.handleUpdatePermissions)
	})
}

type updatePermissionsRequest struct {
	Permissions []int64 `json:"permissions" validate:"required"`
}

// Resource is the serialised role shape with its resolved permissions.
// For super-admin the permission list is the full live catalog.
type Resource struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Permissions []rbac.Permission `json:"permissions"`
}

// editResource is the show-for-edit payload: the role, the full catalog
// to pick from, and the ids currently granted.
type editResource struct {
	Role              Resource          `json:"role"`
	AllPermissions    []rbac.Permission `json:"all_permissions"`
	RolePermissionIDs []int64           `json:"role_permission_ids"`
}

func (h *Handler) resource(r *http.Request, role *rbac.Role) (Resource, error) {
	perms, err := h.service.PermissionsOf(r.Context(), role)
	if err != nil {
		return Resource{}, err
	}
	if perms == nil {
		perms = []rbac.Permission{}
	}
	return Resource{
		ID:          role.ID,
		Name:        role.Name,
		DisplayName: role.DisplayName,
		Permissions: perms,
	}, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	roleList, err := h.service.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resources := make([]Resource, 0, len(roleList))
	for i := range roleList {
		res, err := h.resource(r, &roleList[i])
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		resources = append(resources, res)
	}
	httpx.OK(w, resources)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.guard.CheckRoleMutable(role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.resource(r, role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	catalog, err := h.service.ListPermissions(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ids := make([]int64, 0, len(res.Permissions))
	for _, p := range res.Permissions {
		ids = append(ids, p.ID)
	}
	httpx.OK(w, editResource{
		Role:              res,
		AllPermissions:    catalog,
		RolePermissionIDs: ids,
	})
}

func (h *Handler) handleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updatePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusUnprocessableEntity, httpx.FirstValidationMessage(err))
		return
	}
	if err := h.service.SetRolePermissions(r.Context(), id, req.Permissions); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.resource(r, role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, "Permissions updated successfully for "+role.DisplayName, res)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, httpx.NotFoundf("Role not found."))
		return 0, false
	}
	return id, true
}

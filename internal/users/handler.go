package users

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/taskdeck/taskdeck/internal/platform/httpx"
	"github.com/taskdeck/taskdeck/internal/rbac"
	"github.com/taskdeck/taskdeck/internal/shared"
)

// Handler wires HTTP endpoints for user administration and the profile.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      mw,
		validator: validator.New(),
	}
}

// MountRoutes registers the user administration routes. Every route gates
// on the matching users.* permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermUsersRead)).Get("/", h.handleList)
	r.With(h.rbac.RequireAny(shared.PermUsersRead)).Get("/{id}", h.handleGet)
	r.With(h.rbac.RequireAny(shared.PermUsersUpdate)).Put("/{id}", h.handleUpdate)
	r.With(h.rbac.RequireAny(shared.PermUsersDelete)).Delete("/{id}", h.handleDelete)
}

// MountProfileRoutes registers the self-service profile routes. The only
// gate is authentication; everyone may manage their own account.
func (h *Handler) MountProfileRoutes(r chi.Router) {
	r.Get("/", h.handleProfile)
	r.Put("/", h.handleProfileUpdate)
	r.Put("/password", h.handlePasswordUpdate)
}

// updateUserRequest rewrites a user. Role is optional; when absent the
// current role is kept.
type updateUserRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
	Role  string `json:"role"`
}

type updateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
}

// Resource is the serialised user shape for administration endpoints.
type Resource struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
}

func (h *Handler) resource(r *http.Request, user *User) Resource {
	res := Resource{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
		Roles:       []string{},
		Permissions: []string{},
	}
	if user.Role == nil {
		return res
	}
	res.Roles = []string{user.Role.Name}
	names, err := h.service.PermissionNames(r.Context(), user.Role)
	if err != nil {
		h.logger.Warn("resolve role permissions", slog.Any("error", err))
		return res
	}
	res.Permissions = names
	return res
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageQuery(r)
	filters := ListFilters{
		Search:  r.URL.Query().Get("q"),
		Page:    page,
		PerPage: perPage,
	}
	users, meta, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resources := make([]Resource, 0, len(users))
	for i := range users {
		resources = append(resources, h.resource(r, &users[i]))
	}
	httpx.Paginated(w, resources, *meta)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, h.resource(r, user))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Fail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	actor := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.Update(r.Context(), actor, id, UpdateInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, "User updated successfully.", h.resource(r, user))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, "User deleted successfully.", nil)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	actor := rbac.PrincipalFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	user, err := h.service.Get(r.Context(), actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, h.resource(r, user))
}

func (h *Handler) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	actor := rbac.PrincipalFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Fail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), actor, ProfileInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, "Profile updated successfully.", h.resource(r, user))
}

func (h *Handler) handlePasswordUpdate(w http.ResponseWriter, r *http.Request) {
	actor := rbac.PrincipalFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req updatePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Fail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	if err := h.service.UpdatePassword(r.Context(), actor, req.CurrentPassword, req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, "Password updated successfully.", nil)
}

func (h *Handler) validate(req any) (string, bool) {
	if err := h.validator.Struct(req); err != nil {
		return httpx.FirstValidationMessage(err), false
	}
	return "", true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, httpx.NotFoundf("User not found."))
		return 0, false
	}
	return id, true
}

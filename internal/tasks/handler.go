package tasks

import (
	"bytes"
	"encoding/json"
	"errors"
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

// Handler wires HTTP endpoints for tasks.
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

// MountRoutes registers the task routes. Each gates on the matching
// tasks.* permission; visibility scoping happens in the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermTasksRead)).Get("/", h.handleList)
	r.With(h.rbac.RequireAny(shared.PermTasksCreate)).Post("/", h.handleCreate)
	r.With(h.rbac.RequireAny(shared.PermTasksRead)).Get("/{id}", h.handleGet)
	r.With(h.rbac.RequireAny(shared.PermTasksUpdate)).Put("/{id}", h.handleUpdate)
	r.With(h.rbac.RequireAny(shared.PermTasksDelete)).Delete("/{id}", h.handleDelete)
}

// assigneeField decodes the assigned_to request field. Clients send a
// number, a numeric string, null, or omit the field entirely; 0 and ""
// mean "clear the assignment".
type assigneeField struct {
	set bool
	id  *int64
}

func (f *assigneeField) UnmarshalJSON(data []byte) error {
	f.set = true
	f.id = nil
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		if v < 0 {
			return errors.New("assigned_to must be a positive id")
		}
		if v > 0 {
			id := int64(v)
			f.id = &id
		}
	case string:
		if v == "" || v == "0" {
			return nil
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		if id < 0 {
			return errors.New("assigned_to must be a positive id")
		}
		f.id = &id
	}
	return nil
}

type createTaskRequest struct {
	Title       string        `json:"title" validate:"required,max=150"`
	Description string        `json:"description" validate:"max=5000"`
	Status      string        `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	AssignedTo  assigneeField `json:"assigned_to"`
}

type updateTaskRequest struct {
	Title       *string       `json:"title" validate:"omitempty,min=1,max=150"`
	Description *string       `json:"description" validate:"omitempty,max=5000"`
	Status      *string       `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	AssignedTo  assigneeField `json:"assigned_to"`
}

// Resource is the serialised task shape.
type Resource struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedBy   int64     `json:"created_by"`
	AssignedTo  *int64    `json:"assigned_to"`
	Creator     string    `json:"creator"`
	Assignee    *string   `json:"assignee"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newResource(task *Task) Resource {
	return Resource{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		CreatedBy:   task.CreatedBy,
		AssignedTo:  task.AssignedTo,
		Creator:     task.CreatorName,
		Assignee:    task.AssigneeName,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor := rbac.PrincipalFromContext(r.Context())
	page, perPage := shared.PageQuery(r)
	q := r.URL.Query()
	filters := ListFilters{
		Search:  q.Get("q"),
		Status:  Status(q.Get("status")),
		Page:    page,
		PerPage: perPage,
	}
	if filters.Status != "" && !filters.Status.IsValid() {
		httpx.Fail(w, http.StatusUnprocessableEntity, "The selected status is invalid.")
		return
	}
	if v := q.Get("assigned_to"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusUnprocessableEntity, "The assigned_to filter must be an id.")
			return
		}
		filters.AssignedTo = &id
	}
	if v := q.Get("created_by"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Fail(w, http.StatusUnprocessableEntity, "The created_by filter must be an id.")
			return
		}
		filters.CreatedBy = &id
	}
	if q.Get("mine") == "1" || q.Get("mine") == "true" {
		if actor != nil {
			id := actor.UserID
			filters.Mine = &id
		}
	}

	list, meta, err := h.service.List(r.Context(), actor, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resources := make([]Resource, 0, len(list))
	for i := range list {
		resources = append(resources, newResource(&list[i]))
	}
	httpx.Paginated(w, resources, *meta)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor := rbac.PrincipalFromContext(r.Context())
	task, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, newResource(task))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Fail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	actor := rbac.PrincipalFromContext(r.Context())
	task, err := h.service.Create(r.Context(), actor, CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      Status(req.Status),
		AssignedTo:  req.AssignedTo.id,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, "Task created successfully.", newResource(task))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Fail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	actor := rbac.PrincipalFromContext(r.Context())
	in := UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  AssigneePatch{Set: req.AssignedTo.set, ID: req.AssignedTo.id},
	}
	if req.Status != nil {
		status := Status(*req.Status)
		in.Status = &status
	}
	task, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, "Task updated successfully.", newResource(task))
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
	httpx.OKMessage(w, "Task deleted successfully.", nil)
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
		httpx.RespondError(w, httpx.NotFoundf("Task not found."))
		return 0, false
	}
	return id, true
}

package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/taskdeck/taskdeck/internal/platform/httpx"
	"github.com/taskdeck/taskdeck/internal/rbac"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  PrincipalResolver
	validator *validator.Validate

	rateLimit  int
	rateWindow time.Duration
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver PrincipalResolver, rateLimit int, rateWindow time.Duration) *Handler {
	if rateLimit <= 0 {
		rateLimit = 10
	}
	if rateWindow <= 0 {
		rateWindow = time.Minute
	}
	return &Handler{
		logger:     logger,
		service:    service,
		resolver:   resolver,
		validator:  validator.New(),
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
	}
}

// MountPublicRoutes registers the unauthenticated auth routes.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	limiter := httprate.Limit(h.rateLimit, h.rateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusTooManyRequests, "Too many attempts, slow down.")
		}),
	)
	r.Group(func(r chi.Router) {
		r.Use(limiter)
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
	})
}

// MountProtectedRoutes registers the bearer-authenticated auth routes.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// sessionResponse is the register/login payload: the token rides at the
// top level next to the user resource, matching the mobile client contract.
type sessionResponse struct {
	Status  bool         `json:"status"`
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    UserResource `json:"user"`
}

// UserResource is the serialised account shape shared by auth endpoints.
type UserResource struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
}

// NewUserResource builds the resource from an account row and its
// resolved principal.
func NewUserResource(user *User, principal *rbac.Principal) UserResource {
	res := UserResource{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
		Roles:       []string{},
		Permissions: []string{},
	}
	if principal != nil {
		if principal.Role != nil {
			res.Roles = []string{principal.Role.Name}
		}
		res.Permissions = principal.PermissionNames()
	}
	return res
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Fail(w, http.StatusUnprocessableEntity, msg)
		return
	}

	user, token, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	principal, err := h.resolver.Resolve(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("resolve principal after register", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusCreated, sessionResponse{
		Status:  true,
		Message: "Registered successfully.",
		Token:   token,
		User:    NewUserResource(user, principal),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Fail(w, http.StatusUnprocessableEntity, msg)
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password, r.RemoteAddr, r.UserAgent())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	principal, err := h.resolver.Resolve(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("resolve principal after login", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, sessionResponse{
		Status:  true,
		Message: "Logged in successfully.",
		Token:   token,
		User:    NewUserResource(user, principal),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := TokenFromContext(r.Context())
	if token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			h.logger.Warn("revoke token", slog.Any("error", err))
		}
	}
	httpx.OKMessage(w, "Logged out.", nil)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Fail(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	user, err := h.service.FindUser(r.Context(), principal.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status": true,
		"user":   NewUserResource(user, principal),
	})
}

func (h *Handler) validate(req any) (string, bool) {
	if err := h.validator.Struct(req); err != nil {
		return httpx.FirstValidationMessage(err), false
	}
	return "", true
}

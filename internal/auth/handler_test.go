package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck/internal/platform/httpx"
	"github.com/taskdeck/taskdeck/internal/rbac"
	"github.com/taskdeck/taskdeck/internal/shared"
	_ "github.com/taskdeck/taskdeck/internal/testing/guard"
)

type memRepo struct {
	users  map[int64]*User
	tokens map[string]int64
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[int64]*User{}, tokens: map[string]int64{}, nextID: 1}
}

func (m *memRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) FindByID(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *memRepo) CreateUser(_ context.Context, name, email, passwordHash string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return nil, ErrEmailTaken
		}
	}
	user := &User{
		ID:           m.nextID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[user.ID] = user
	m.nextID++
	clone := *user
	return &clone, nil
}

func (m *memRepo) RecordToken(_ context.Context, token string, userID int64, _ time.Time, _, _ string) error {
	m.tokens[token] = userID
	return nil
}

func (m *memRepo) DeleteToken(_ context.Context, token string) error {
	delete(m.tokens, token)
	return nil
}

type memRoles struct {
	assigned map[int64]string
}

func (m *memRoles) AssignRole(_ context.Context, userID int64, roleName string) error {
	m.assigned[userID] = roleName
	return nil
}

type memResolver struct {
	repo  *memRepo
	roles *memRoles
}

func (m *memResolver) Resolve(_ context.Context, userID int64) (*rbac.Principal, error) {
	user, ok := m.repo.users[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	p := &rbac.Principal{
		UserID:      userID,
		Name:        user.Name,
		Email:       user.Email,
		Permissions: map[string]struct{}{},
	}
	if roleName, ok := m.roles.assigned[userID]; ok {
		p.Role = &rbac.Role{Name: roleName}
		if roleName == rbac.RoleUser {
			p.Permissions[shared.PermTasksRead] = struct{}{}
		}
	}
	return p, nil
}

type authHarness struct {
	router http.Handler
	repo   *memRepo
	roles  *memRoles
	tokens *TokenStore
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemRepo()
	roles := &memRoles{assigned: map[int64]string{}}
	tokens := NewTokenStore(client, time.Hour)
	service := NewService(repo, tokens, roles)
	resolver := &memResolver{repo: repo, roles: roles}
	handler := NewHandler(slog.Default(), service, resolver, 100, time.Minute)
	mw := Middleware{Service: service, Resolver: resolver, Logger: slog.Default()}

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		handler.MountPublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate)
			handler.MountProtectedRoutes(r)
		})
	})
	return &authHarness{router: r, repo: repo, roles: roles, tokens: tokens}
}

func (h *authHarness) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *authHarness) register(t *testing.T, name, email, password string) sessionResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": name, "email": email, "password": password})
	rec := h.do(t, http.MethodPost, "/api/auth/register", string(body), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRegisterIssuesTokenAndDefaultRole(t *testing.T) {
	h := newAuthHarness(t)

	resp := h.register(t, "Ada", "Ada@Example.COM", "secret-password")
	require.True(t, resp.Status)
	require.Equal(t, "Registered successfully.", resp.Message)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "ada@example.com", resp.User.Email)
	require.Equal(t, []string{rbac.RoleUser}, resp.User.Roles)
	require.Contains(t, resp.User.Permissions, shared.PermTasksRead)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newAuthHarness(t)
	h.register(t, "Ada", "ada@example.com", "secret-password")

	body := `{"name":"Ada Again","email":"ADA@example.com","password":"secret-password"}`
	rec := h.do(t, http.MethodPost, "/api/auth/register", body, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "The email has already been taken.")
}

func TestRegisterValidation(t *testing.T) {
	h := newAuthHarness(t)

	rec := h.do(t, http.MethodPost, "/api/auth/register", `{"name":"Ada","email":"ada@example.com","password":"short"}`, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/register", `{"name":"Ada","email":"not-an-email","password":"secret-password"}`, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLoginAndMe(t *testing.T) {
	h := newAuthHarness(t)
	h.register(t, "Ada", "ada@example.com", "secret-password")

	rec := h.do(t, http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"secret-password"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	me := h.do(t, http.MethodGet, "/api/auth/me", "", resp.Token)
	require.Equal(t, http.StatusOK, me.Code)
	require.Contains(t, me.Body.String(), "ada@example.com")
}

func TestFindUserMissingIsNotFound(t *testing.T) {
	h := newAuthHarness(t)
	resp := h.register(t, "Ada", "ada@example.com", "secret-password")

	svc := NewService(h.repo, h.tokens, h.roles)
	user, err := svc.FindUser(context.Background(), resp.User.ID)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)

	_, err = svc.FindUser(context.Background(), 9999)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestLoginWrongPassword(t *testing.T) {
	h := newAuthHarness(t)
	h.register(t, "Ada", "ada@example.com", "secret-password")

	rec := h.do(t, http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"wrong-password"}`, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid credentials.")
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newAuthHarness(t)
	resp := h.register(t, "Ada", "ada@example.com", "secret-password")

	rec := h.do(t, http.MethodPost, "/api/auth/logout", "", resp.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	me := h.do(t, http.MethodGet, "/api/auth/me", "", resp.Token)
	require.Equal(t, http.StatusUnauthorized, me.Code)
}

func TestProtectedRoutesRejectMissingOrBogusToken(t *testing.T) {
	h := newAuthHarness(t)

	rec := h.do(t, http.MethodGet, "/api/auth/me", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/auth/me", "", "not-a-real-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenForDeletedUserRejected(t *testing.T) {
	h := newAuthHarness(t)
	resp := h.register(t, "Ada", "ada@example.com", "secret-password")

	delete(h.repo.users, resp.User.ID)

	rec := h.do(t, http.MethodGet, "/api/auth/me", "", resp.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/taskdeck/taskdeck/internal/platform/httpx"
	"github.com/taskdeck/taskdeck/internal/rbac"
	"github.com/taskdeck/taskdeck/internal/shared"
)

// RoleAssigner is the slice of the rbac service registration depends on.
type RoleAssigner interface {
	AssignRole(ctx context.Context, userID int64, roleName string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenStore
	roles  RoleAssigner
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenStore, roles RoleAssigner) *Service {
	return &Service{repo: repo, tokens: tokens, roles: roles}
}

// NormalizeEmail canonicalises an email address: NFC, trimmed, lowercase.
// Applied at registration so duplicate-case addresses cannot coexist.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(email)))
}

// Register creates a new account, auto-assigns the regular user role and
// issues a bearer token.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, string, error) {
	email = NormalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user, err := s.repo.CreateUser(ctx, strings.TrimSpace(name), email, string(hash))
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, "", httpx.Validationf("The email has already been taken.")
		}
		return nil, "", err
	}

	if err := s.roles.AssignRole(ctx, user.ID, rbac.RoleUser); err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, "", httpx.Validationf("Registration failed: default role %q not found.", rbac.RoleUser)
		}
		return nil, "", err
	}

	token, err := s.issueToken(ctx, user.ID, "", "")
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a token recording the client metadata.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (*User, string, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, "", httpx.Validationf("Invalid credentials.")
	}
	token, err := s.issueToken(ctx, user.ID, ip, ua)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// FindUser fetches a user by id, translating a missing row into a 404.
func (s *Service) FindUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, httpx.NotFoundf("User not found.")
		}
		return nil, err
	}
	return user, nil
}

// Logout revokes the presented token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return err
	}
	return s.repo.DeleteToken(ctx, token)
}

// ResolveToken maps a presented token back to its user id.
func (s *Service) ResolveToken(ctx context.Context, token string) (int64, error) {
	return s.tokens.Resolve(ctx, token)
}

func (s *Service) issueToken(ctx context.Context, userID int64, ip, ua string) (string, error) {
	token, err := s.tokens.Issue(ctx, userID)
	if err != nil {
		return "", err
	}
	expiresAt := time.Now().Add(s.tokens.TTL())
	// The audit record is best effort; the Redis entry is authoritative.
	_ = s.repo.RecordToken(ctx, token, userID, expiresAt, ip, ua)
	return token, nil
}

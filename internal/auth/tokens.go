package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskdeck/taskdeck/internal/shared"
)

// TokenStore keeps opaque bearer tokens in Redis, keyed by token value
// with the user id as payload. Tokens expire via Redis TTL; the Postgres
// tokens table holds a parallel audit record pruned by the worker.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (ts *TokenStore) TTL() time.Duration {
	return ts.ttl
}

// Issue mints a fresh opaque token for the user.
func (ts *TokenStore) Issue(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	if err := ts.client.Set(ctx, tokenKey(token), strconv.FormatInt(userID, 10), ts.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve maps a presented token back to its user id.
func (ts *TokenStore) Resolve(ctx context.Context, token string) (int64, error) {
	raw, err := ts.client.Get(ctx, tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, shared.ErrNotFound
	}
	return userID, nil
}

// Revoke deletes a token so it can no longer authenticate requests.
func (ts *TokenStore) Revoke(ctx context.Context, token string) error {
	return ts.client.Del(ctx, tokenKey(token)).Err()
}

func tokenKey(token string) string {
	return "token:" + token
}

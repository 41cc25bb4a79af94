package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aegis-iam/aegis/internal/platform/httpx"
)

const resetKeyPrefix = "auth:reset:"

// ResetTokenStore keeps single-use password reset tokens in Redis with a TTL.
type ResetTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResetTokenStore constructs a ResetTokenStore.
func NewResetTokenStore(client *redis.Client, ttl time.Duration) *ResetTokenStore {
	return &ResetTokenStore{client: client, ttl: ttl}
}

// Create stores a fresh token for the given user and returns it.
func (s *ResetTokenStore) Create(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, resetKeyPrefix+token, userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store reset token: %w", err)
	}
	return token, nil
}

// Consume resolves a token to its user id and deletes it. Expired and unknown
// tokens are indistinguishable to the caller.
func (s *ResetTokenStore) Consume(ctx context.Context, token string) (int64, error) {
	key := resetKeyPrefix + token
	userID, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("%w: invalid or expired reset token", httpx.ErrUnauthorized)
		}
		return 0, fmt.Errorf("auth: load reset token: %w", err)
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return 0, fmt.Errorf("auth: consume reset token: %w", err)
	}
	return userID, nil
}

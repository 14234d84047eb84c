package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenPrefix = "revoked_token:"

// TokenRepository keeps a denylist of revoked access token IDs until they expire. Without a
// Redis client the list lives in process memory.
type TokenRepository struct {
	client *redis.Client

	mu    sync.Mutex
	local map[string]time.Time
	now   func() time.Time
}

// NewTokenRepository constructs a token repository. client may be nil.
func NewTokenRepository(client *redis.Client) *TokenRepository {
	return &TokenRepository{client: client, local: make(map[string]time.Time), now: time.Now}
}

// Revoke denies the token ID until expiresAt. Already expired tokens are ignored.
func (r *TokenRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if tokenID == "" || ttl <= 0 {
		return nil
	}

	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.pruneLocked()
		r.local[tokenID] = expiresAt
		return nil
	}

	if err := r.client.Set(ctx, revokedTokenPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token ID was revoked.
func (r *TokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		expiresAt, ok := r.local[tokenID]
		if !ok {
			return false, nil
		}
		if !r.now().Before(expiresAt) {
			delete(r.local, tokenID)
			return false, nil
		}
		return true, nil
	}

	if err := r.client.Get(ctx, revokedTokenPrefix+tokenID).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis check token: %w", err)
	}
	return true, nil
}

func (r *TokenRepository) pruneLocked() {
	now := r.now()
	for id, expiresAt := range r.local {
		if !now.Before(expiresAt) {
			delete(r.local, id)
		}
	}
}

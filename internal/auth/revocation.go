package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenKeyPrefix = "revoked:token:"

// RevocationList records tokens invalidated before their natural expiry.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocationList stores revoked token ids in Redis with a TTL matching
// the token's remaining lifetime, so entries disappear once the token would
// have expired anyway.
type RedisRevocationList struct {
	client *redis.Client
}

var _ RevocationList = (*RedisRevocationList)(nil)

// NewRedisRevocationList wraps a go-redis client.
func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

// Revoke marks tokenID as revoked. Tokens that are already expired are ignored.
func (l *RedisRevocationList) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	if l == nil || l.client == nil {
		return errors.New("revocation store not configured")
	}
	return l.client.Set(ctx, revokedTokenKeyPrefix+tokenID, "1", ttl).Err()
}

// IsRevoked reports whether tokenID was revoked.
func (l *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if l == nil || l.client == nil || tokenID == "" {
		return false, nil
	}
	n, err := l.client.Exists(ctx, revokedTokenKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "atlas:auth:revoked:"

// RevocationList is a redis-backed token denylist. Entries expire together
// with the token they block, so the set stays bounded by the token TTL.
type RevocationList struct {
	rdb *redis.Client
}

// NewRevocationList builds a RevocationList around a redis client.
func NewRevocationList(rdb *redis.Client) *RevocationList {
	return &RevocationList{rdb: rdb}
}

// Revoke marks a token id as unusable until it would have expired anyway.
func (rl *RevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := rl.rdb.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether a token id is on the denylist.
func (rl *RevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := rl.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("auth: check revocation: %w", err)
	}
	return n > 0, nil
}

package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenPrefix = "fairtix:auth:revoked:"

// RedisRevocationList records logged-out JWTs in Redis until they would have
// expired. Tokens are stored as SHA-256 digests, never in the clear.
type RedisRevocationList struct {
	client redis.Cmdable
}

func NewRedisRevocationList(client redis.Cmdable) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

func revokedTokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revokedTokenPrefix + hex.EncodeToString(sum[:])
}

// Blacklist revokes token for the rest of its lifetime. An already expired
// token is rejected by signature checks alone, so nothing is written.
func (b *RedisRevocationList) Blacklist(ctx context.Context, token string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	return b.client.Set(ctx, revokedTokenKey(token), time.Now().UTC().Format(time.RFC3339), remaining).Err()
}

func (b *RedisRevocationList) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := b.client.Exists(ctx, revokedTokenKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

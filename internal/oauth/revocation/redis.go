package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/etudehq/etude-auth/internal/config"
	apperrors "github.com/etudehq/etude-auth/internal/errors"
)

const redisKeyPrefix = "etudeauth:revoked:"

// RedisRegistry keeps revoked token ids in Redis so revocation survives a
// restart and is shared across instances. Entries carry the token's
// remaining lifetime as their TTL, so the set prunes itself.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(cfg config.Cache) *RedisRegistry {
	return &RedisRegistry{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		}),
	}
}

// Ping verifies connectivity, for startup and health checks.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

func (r *RedisRegistry) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl < minEntryTTL {
		ttl = minEntryTTL
	}

	key := redisKeyPrefix + tokenID
	if err := r.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return apperrors.StoreUnavailableError(fmt.Sprintf("failed to revoke token id %s", tokenID), err)
	}
	return nil
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	key := redisKeyPrefix + tokenID
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, apperrors.StoreUnavailableError(fmt.Sprintf("failed to check revocation for token id %s", tokenID), err)
	}
	return count > 0, nil
}

package auth

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "revoked_token:"

// RedisRevocations is a token denylist kept in Redis.
type RedisRevocations struct {
	client *redis.Client
}

// NewRedisRevocations connects to the Redis instance at url.
func NewRedisRevocations(url string) (*RedisRevocations, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s", err.Error())
		return nil, err
	}
	return NewRedisRevocationsFromClient(redis.NewClient(opt)), nil
}

// NewRedisRevocationsFromClient wraps an existing client.
func NewRedisRevocationsFromClient(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Revoke denies tokenID until ttl elapses.
func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err()
}

func (r *RedisRevocations) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRevocations) Close() error {
	return r.client.Close()
}

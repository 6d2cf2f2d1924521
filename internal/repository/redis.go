package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "aptdesk:session:"

// RedisSessionRepository keeps refresh sessions in redis with TTL-based
// expiry.
type RedisSessionRepository struct {
	client *redis.Client
}

// NewRedisSessionRepository creates a redis-backed session repository.
func NewRedisSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

func (r *RedisSessionRepository) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	return r.client.Set(ctx, sessionKeyPrefix+token, userID, ttl).Err()
}

func (r *RedisSessionRepository) GetSession(ctx context.Context, token string) (int64, error) {
	val, err := r.client.Get(ctx, sessionKeyPrefix+token).Result()
	if err == redis.Nil {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session value: %w", err)
	}
	return userID, nil
}

func (r *RedisSessionRepository) DeleteSession(ctx context.Context, token string) error {
	return r.client.Del(ctx, sessionKeyPrefix+token).Err()
}

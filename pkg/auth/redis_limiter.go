package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares sliding-window state across service instances.
// Each (key, minute) pair maps to a Redis counter that expires after the
// retention window, so cleanup is free.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter connects to Redis and verifies connectivity.
func NewRedisLimiter(ctx context.Context, addr, password string, db int) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLimiter{client: client, prefix: "crateintel:rate:"}, nil
}

// NewRedisLimiterFromClient wraps an existing client, e.g. one shared
// with the Redis cache backend.
func NewRedisLimiterFromClient(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "crateintel:rate:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int) (Decision, error) {
	now := time.Now()
	minute := now.Unix() / 60
	reset := nextWindow(now)
	bucket := fmt.Sprintf("%s%s:%d", l.prefix, key, minute)

	used, err := l.client.Incr(ctx, bucket).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("redis incr: %w", err)
	}
	// First hit in a bucket sets its expiry; later hits leave it alone.
	if used == 1 {
		l.client.Expire(ctx, bucket, bucketRetention)
	}

	if used > int64(limit) {
		return Decision{Limit: limit, Used: limit, Reset: reset}, nil
	}
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(used),
		Used:      int(used),
		Reset:     reset,
	}, nil
}

func (l *RedisLimiter) Close() error { return l.client.Close() }

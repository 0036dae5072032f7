package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window limiter shared across processes. The window is
// approximate at the boundary, which is acceptable for abuse control; the
// transactional owner check remains the correctness guard.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedis constructs a Redis-backed limiter allowing limit attempts per
// window per key.
func NewRedis(client *redis.Client, limit int, window time.Duration) *Redis {
	return &Redis{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ownership:claim_attempts:",
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := r.prefix + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("claim attempt counter: %w", err)
	}
	return incr.Val() <= int64(r.limit), nil
}

// Package ratelimit implements a Redis-backed sliding-window limiter keyed
// by member id. It is advisory backpressure for the externally triggered
// operations, enforced before any transaction opens.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Limiter reports whether a keyed request fits inside its window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SlidingWindow counts request timestamps in a per-key sorted set, expiring
// entries older than the window.
type SlidingWindow struct {
	client *redis.Client
}

func NewSlidingWindow(client *redis.Client) *SlidingWindow {
	return &SlidingWindow{client: client}
}

func (s *SlidingWindow) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-window)
	redisKey := "ratelimit:" + key

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", cutoff.UnixNano()))
	count := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if count.Val() >= int64(limit) {
		return false, nil
	}

	pipe = s.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, redisKey, window)
	_, err := pipe.Exec(ctx)
	return true, err
}

// Unlimited never rejects. Used when no Redis endpoint is configured and in
// handler tests.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

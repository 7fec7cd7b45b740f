package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// QuotaCounter counts generations for users on the Free plan.
type QuotaCounter struct {
	redis *redis.Client
	limit int
}

func NewQuotaCounter(redisClient *redis.Client, limit int) *QuotaCounter {
	return &QuotaCounter{redis: redisClient, limit: limit}
}

func quotaKey(userID string) string {
	return "generations:" + userID
}

func (q *QuotaCounter) Limit() int { return q.limit }

func (q *QuotaCounter) Used(ctx context.Context, userID string) (int, error) {
	n, err := q.redis.Get(ctx, quotaKey(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read generation count: %w", err)
	}
	return n, nil
}

func (q *QuotaCounter) Increment(ctx context.Context, userID string) (int, error) {
	n, err := q.redis.Incr(ctx, quotaKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment generation count: %w", err)
	}
	return int(n), nil
}

package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"studyai-backend/internal/models"
)

const (
	EventGenerationCompleted = "generation_completed"
	EventGenerationFailed    = "generation_failed"
	EventPlanUpdated         = "plan_updated"
)

// UserChannel is the pub/sub channel the websocket hub relays to a user.
func UserChannel(userID string) string {
	return "user_updates:" + userID
}

type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

func (p *RedisPublisher) PublishUpdate(ctx context.Context, userID string, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := p.redis.Publish(ctx, UserChannel(userID), string(data)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	return nil
}

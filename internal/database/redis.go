package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients splits blocking subscriptions from request-path commands so a
// burst of websocket subscribers cannot starve the workspace pool.
type RedisClients struct {
	Store  *redis.Client
	PubSub *redis.Client
}

func NewRedisClients(ctx context.Context, redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := connect(ctx, opt, "studyai-store")
	if err != nil {
		return nil, err
	}
	pubsub, err := connect(ctx, opt, "studyai-pubsub")
	if err != nil {
		store.Close()
		return nil, err
	}
	return &RedisClients{Store: store, PubSub: pubsub}, nil
}

func connect(ctx context.Context, base *redis.Options, name string) (*redis.Client, error) {
	opt := *base
	opt.ClientName = name
	client := redis.NewClient(&opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis (%s): %w", name, err)
	}
	return client, nil
}

func (r *RedisClients) Close() {
	r.Store.Close()
	r.PubSub.Close()
}

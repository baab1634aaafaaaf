package repository

import (
	"context"
	"fmt"

	"github.com/example/dinein/pkg/config"
	"github.com/go-redis/redis/v8"
)

// NewRedisClient connects the shared redis client used for table locks and
// event fan-out.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

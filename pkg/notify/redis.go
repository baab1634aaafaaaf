package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisPublisher fans events out to every instance through redis pub/sub.
// Channels are "<prefix>:<topic>".
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.prefix+":"+e.Topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// RunRedisRelay feeds events published by any instance into the local
// publisher until ctx is done.
func RunRedisRelay(ctx context.Context, client *redis.Client, prefix string, local Publisher, logger *zap.Logger) error {
	sub := client.PSubscribe(ctx, prefix+":*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to redis: %w", err)
	}
	logger.Info("Redis relay subscribed", zap.String("pattern", prefix+":*"))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				logger.Warn("Dropping malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			_ = local.Publish(ctx, e)
		}
	}
}

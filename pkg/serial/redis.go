package serial

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const lockRetryInterval = 20 * time.Millisecond

// Deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisSerializer orders work across instances with a redis lock per key.
// A lock expires after ttl so a crashed holder cannot block a key forever.
type RedisSerializer struct {
	client  *redis.Client
	logger  *zap.Logger
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

func NewRedisSerializer(client *redis.Client, logger *zap.Logger, prefix string, ttl, timeout time.Duration) *RedisSerializer {
	return &RedisSerializer{
		client:  client,
		logger:  logger.Named("serializer"),
		prefix:  prefix,
		ttl:     ttl,
		timeout: timeout,
	}
}

func (s *RedisSerializer) lockKey(key string) string {
	return fmt.Sprintf("%s:lock:%s", s.prefix, key)
}

func (s *RedisSerializer) acquire(ctx context.Context, lockKey, token string) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to acquire %s: %w", lockKey, ctx.Err())
		case <-timer.C:
		}

		ok, err := s.client.SetNX(ctx, lockKey, token, s.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire %s: %w", lockKey, err)
		}
		if ok {
			return nil
		}
		timer.Reset(lockRetryInterval)
	}
}

func (s *RedisSerializer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lockKey := s.lockKey(key)
	token := uuid.NewString()
	if err := s.acquire(ctx, lockKey, token); err != nil {
		return err
	}
	defer func() {
		// Release even when ctx is already done.
		if err := releaseScript.Run(context.Background(), s.client, []string{lockKey}, token).Err(); err != nil {
			s.logger.Warn("Failed to release lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	return fn(ctx)
}

func (s *RedisSerializer) Forget(key string) {}

func (s *RedisSerializer) Close() error {
	return nil
}

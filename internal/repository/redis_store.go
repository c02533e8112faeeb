package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "chapter-server:"

// RedisStore хранит значения в Redis с общим TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore создает хранилище поверх клиента Redis. ttl <= 0 - без срока жизни.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisStore"),
	}
}

func (s *RedisStore) Load(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		s.logger.Error("Failed to get key from redis", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("%w: redis get %s: %v", ErrStoreUnavailable, key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Save(ctx context.Context, key, value string) error {
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		s.logger.Error("Failed to set key in redis", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: redis set %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		s.logger.Error("Failed to delete key from redis", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: redis del %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

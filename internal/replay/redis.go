package replay

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "fanpulse:replay:"

// RedisStore backs the replay cache with redis SET NX, giving
// once-only semantics across replicas. Redis expires the keys itself,
// so there is no sweeper to run.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Remember(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replay store: %w", err)
	}
	return ok, nil
}

package serving

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ikape/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

const cachePrefix = "ikape:prediction:"

// RedisCache keeps recent results keyed by generation and record fingerprint.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (models.PredictionResult, bool, error) {
	val, err := c.client.Get(ctx, cachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.PredictionResult{}, false, nil
	}
	if err != nil {
		return models.PredictionResult{}, false, err
	}
	var result models.PredictionResult
	if err := json.Unmarshal(val, &result); err != nil {
		return models.PredictionResult{}, false, err
	}
	return result, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, result models.PredictionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cachePrefix+key, data, c.ttl).Err()
}

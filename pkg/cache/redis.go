package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisWrapper 基于 go-redis 的分布式缓存，多实例部署时共享可用状态
type redisWrapper struct {
	client *redis.Client
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(cfg Config) Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &redisWrapper{client: client}
}

func (rc *redisWrapper) Get(ctx context.Context, key string) (interface{}, bool) {
	val, err := rc.client.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (rc *redisWrapper) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return rc.client.Set(ctx, key, value, expiration).Err()
}

func (rc *redisWrapper) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, key).Err()
}

func (rc *redisWrapper) Exists(ctx context.Context, key string) bool {
	n, err := rc.client.Exists(ctx, key).Result()
	return err == nil && n > 0
}

func (rc *redisWrapper) Close() error {
	return rc.client.Close()
}

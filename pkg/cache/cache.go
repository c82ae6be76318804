package cache

import (
	"context"
	"time"
)

// Cache 缓存接口，用于志愿者可用状态和远端可达性探测结果的短 TTL 缓存
type Cache interface {
	// Get 获取缓存值
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set 设置缓存值
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Delete 删除缓存
	Delete(ctx context.Context, key string) error

	// Exists 检查键是否存在
	Exists(ctx context.Context, key string) bool

	// Close 关闭缓存连接
	Close() error
}

// Config 缓存配置
type Config struct {
	// 缓存类型: "local" 或 "redis"
	Type string

	// Redis 配置
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// 本地缓存配置
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
}

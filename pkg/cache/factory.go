package cache

// New 根据配置创建缓存实例，未知类型回退为本地缓存
func New(cfg Config) Cache {
	switch cfg.Type {
	case "redis":
		return NewRedisCache(cfg)
	default:
		return NewGoCache(cfg)
	}
}

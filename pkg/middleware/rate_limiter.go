package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiterConfig 限流配置
//
// Rate: 全局速率，如 "100-M"；PerRouteRates 按路由覆盖（SOS 接口通常单独收紧）。
// SkipPaths 前缀匹配，健康检查和 metrics 不限流。
type RateLimiterConfig struct {
	Rate          string            `json:"rate"`
	PerRouteRates map[string]string `json:"per_route_rates"`
	SkipPaths     []string          `json:"skip_paths"`
}

// RateLimiter 面向实例的限流器，按速率字符串缓存 limiter
type RateLimiter struct {
	cfg            RateLimiterConfig
	store          limiter.Store
	limitersByRate map[string]*limiter.Limiter
	mu             sync.RWMutex
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		cfg:            cfg,
		store:          memory.NewStore(),
		limitersByRate: make(map[string]*limiter.Limiter),
	}
}

// Middleware 返回 Gin 中间件，按客户端 IP 限流
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		for _, pref := range l.cfg.SkipPaths {
			if pref != "" && len(path) >= len(pref) && path[:len(pref)] == pref {
				c.Next()
				return
			}
		}

		lim := l.limiterFor(l.rateFor(path))
		lctx, err := lim.Get(c, "ip:"+c.ClientIP())
		if err != nil {
			c.Next()
			return
		}
		if lctx.Reached {
			retry := int(time.Until(time.Unix(lctx.Reset, 0)).Seconds())
			if retry < 0 {
				retry = 0
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too Many Requests"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) rateFor(path string) string {
	if r, ok := l.cfg.PerRouteRates[path]; ok && r != "" {
		return r
	}
	if l.cfg.Rate != "" {
		return l.cfg.Rate
	}
	return "10-S"
}

func (l *RateLimiter) limiterFor(rateStr string) *limiter.Limiter {
	l.mu.RLock()
	lim, ok := l.limitersByRate[rateStr]
	l.mu.RUnlock()
	if ok {
		return lim
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok = l.limitersByRate[rateStr]; ok {
		return lim
	}
	r, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r = limiter.Rate{Period: time.Second, Limit: 10}
	}
	lim = limiter.New(l.store, r)
	l.limitersByRate[rateStr] = lim
	return lim
}

package config

import (
	"log"
	"os"
	"time"

	"HarmonyCare/pkg/logger"
	"HarmonyCare/pkg/util"
)

type Config struct {
	DBDriver  string `env:"DB_DRIVER"`
	DSN       string `env:"DSN"`
	Addr      string `env:"ADDR"`
	Mode      string `env:"MODE"`
	APIPrefix string `env:"API_PREFIX"`
	Log       logger.LogConfig

	// 远端同步（可选）
	RemoteSyncEnabled bool          `env:"REMOTE_SYNC_ENABLED"`
	RemoteBaseURL     string        `env:"REMOTE_BASE_URL"`
	RemoteTimeout     time.Duration `env:"REMOTE_TIMEOUT"`

	// 局域网广播
	BroadcastEnabled bool `env:"BROADCAST_ENABLED"`
	BroadcastPort    int  `env:"BROADCAST_PORT"`

	// 离线队列重放
	ReplayInterval   time.Duration `env:"REPLAY_INTERVAL"`
	ReplayMaxRetries int           `env:"REPLAY_MAX_RETRIES"`

	// 可用状态缓存
	CacheType     string `env:"CACHE_TYPE"` // local | redis
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// 限流
	RateLimit    string `env:"RATE_LIMIT"`     // e.g. "100-M"
	SOSRateLimit string `env:"SOS_RATE_LIMIT"` // SOS 接口单独限流

	// 推送
	JPushAppKey       string `env:"JPUSH_APP_KEY"`
	JPushMasterSecret string `env:"JPUSH_MASTER_SECRET"`

	// 提醒扫描（cron 表达式）
	ReminderCron string `env:"REMINDER_CRON"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = &Config{
		DBDriver:  util.GetEnv("DB_DRIVER"),
		DSN:       util.GetEnv("DSN"),
		Addr:      util.GetEnvDefault("ADDR", ":8080"),
		Mode:      util.GetEnv("MODE"),
		APIPrefix: util.GetEnvDefault("API_PREFIX", "/api"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		RemoteSyncEnabled: util.GetBoolEnv("REMOTE_SYNC_ENABLED"),
		RemoteBaseURL:     util.GetEnv("REMOTE_BASE_URL"),
		RemoteTimeout:     durationEnv("REMOTE_TIMEOUT", 7*time.Second),
		BroadcastEnabled:  util.GetBoolEnv("BROADCAST_ENABLED"),
		BroadcastPort:     intEnvDefault("BROADCAST_PORT", 8888),
		ReplayInterval:    durationEnv("REPLAY_INTERVAL", 30*time.Second),
		ReplayMaxRetries:  intEnvDefault("REPLAY_MAX_RETRIES", 8),
		CacheType:         util.GetEnvDefault("CACHE_TYPE", "local"),
		RedisAddr:         util.GetEnv("REDIS_ADDR"),
		RedisPassword:     util.GetEnv("REDIS_PASSWORD"),
		RateLimit:         util.GetEnvDefault("RATE_LIMIT", "100-M"),
		SOSRateLimit:      util.GetEnvDefault("SOS_RATE_LIMIT", "10-M"),
		JPushAppKey:       util.GetEnv("JPUSH_APP_KEY"),
		JPushMasterSecret: util.GetEnv("JPUSH_MASTER_SECRET"),
		ReminderCron:      util.GetEnvDefault("REMINDER_CRON", "@every 1m"),
	}
	return nil
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v := util.GetEnv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func intEnvDefault(key string, def int) int {
	if v := util.GetIntEnv(key); v != 0 {
		return int(v)
	}
	return def
}

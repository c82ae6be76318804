package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	handlers "HarmonyCare/internal/handler"
	"HarmonyCare/internal/listeners"
	"HarmonyCare/internal/models"
	"HarmonyCare/internal/remote"
	"HarmonyCare/internal/service"
	"HarmonyCare/pkg/broadcast"
	"HarmonyCare/pkg/cache"
	"HarmonyCare/pkg/config"
	"HarmonyCare/pkg/logger"
	"HarmonyCare/pkg/middleware"
	"HarmonyCare/pkg/notification"
	"HarmonyCare/pkg/scheduler"
	"HarmonyCare/pkg/util"
	"HarmonyCare/pkg/websocket"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := config.GlobalConfig

	logger.Init(cfg.Log)
	defer logger.Sync()
	zlog := logger.L()

	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	db, err := util.OpenDatabase(cfg.DBDriver, cfg.DSN)
	if err != nil {
		zlog.Fatal("failed to open database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Emergency{},
		&models.VolunteerStatus{},
		&models.Message{},
		&models.Rating{},
		&models.EmergencyContact{},
		&models.PendingOperation{},
		&models.Reminder{},
	); err != nil {
		zlog.Fatal("failed to migrate schema", zap.Error(err))
	}

	store := cache.New(cache.Config{
		Type:          cfg.CacheType,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
	})
	defer store.Close()

	// HTTP 客户端侧统一用 logrus
	httpLog := logrus.New()
	httpLog.SetFormatter(&logrus.JSONFormatter{})

	var remoteClient *remote.Client
	if cfg.RemoteSyncEnabled && cfg.RemoteBaseURL != "" {
		remoteClient = remote.NewClient(remote.Config{
			BaseURL: cfg.RemoteBaseURL,
			Timeout: cfg.RemoteTimeout,
		}, httpLog)
	}

	var notifier notification.Sink = notification.NopSink{}
	if cfg.JPushAppKey != "" && cfg.JPushMasterSecret != "" {
		notifier = notification.NewJPush(notification.JPushConfig{
			AppKey:       cfg.JPushAppKey,
			MasterSecret: cfg.JPushMasterSecret,
		}, httpLog)
	}

	hub := websocket.NewHub(zlog)
	go hub.Run()

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var channel *broadcast.Channel
	if cfg.BroadcastEnabled {
		channel = broadcast.NewChannel(cfg.BroadcastPort, zlog)
		listeners.NewBroadcastListener(db, channel, hub, zlog).Start(rootCtx)
	}

	orchestrator := service.NewOrchestrator(service.Options{
		DB:          db,
		Remote:      remoteClient,
		Broadcaster: channel,
		Notifier:    notifier,
		Hub:         hub,
		Cache:       store,
		Logger:      zlog,
	})

	// 离线队列重放
	sched := scheduler.New()
	defer sched.Stop()
	if remoteClient != nil {
		replayer := service.NewReplayer(db, remoteClient, cfg.ReplayMaxRetries, cfg.ReplayInterval, zlog)
		sched.Every(cfg.ReplayInterval, scheduler.FuncJob(replayer.Run))
	}

	// 提醒扫描
	cr := scheduler.NewCron(nil)
	sweeper := service.NewReminderSweeper(db, notifier, zlog)
	if _, err := cr.AddWithCtx(cfg.ReminderCron, sweeper.Run); err != nil {
		zlog.Fatal("invalid reminder cron expression", zap.String("expr", cfg.ReminderCron), zap.Error(err))
	}
	cr.Start()
	defer cr.Stop()

	engine := gin.New()
	engine.Use(gin.Recovery())
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate: cfg.RateLimit,
		PerRouteRates: map[string]string{
			cfg.APIPrefix + "/emergencies": cfg.SOSRateLimit,
		},
		SkipPaths: []string{"/metrics", cfg.APIPrefix + "/health", cfg.APIPrefix + "/system/health"},
	})
	engine.Use(limiter.Middleware())
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.NewHandlers(db, orchestrator, hub).Register(engine)

	srv := &http.Server{Addr: cfg.Addr, Handler: engine}
	go func() {
		zlog.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nexusmail/agent/internal/config"
	"nexusmail/agent/internal/domain"
	"nexusmail/agent/internal/health"
	"nexusmail/agent/internal/inbox"
	"nexusmail/agent/internal/logger"
	"nexusmail/agent/internal/monitoring"
	"nexusmail/agent/internal/persona"
	"nexusmail/agent/internal/provider"
	"nexusmail/agent/internal/store"
	httptransport "nexusmail/agent/internal/transport/http"
	"nexusmail/agent/internal/websocket"
)

// main 启动本地邮箱代理：HTTP API、收件箱轮询和 WebSocket 推送。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting nexusmail agent",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Strings("providers", cfg.Provider.BaseURLs),
	)

	// 初始化持久化后端
	var persistence store.Persistence
	switch cfg.Storage.Backend {
	case "redis":
		persistence, err = store.NewRedisPersistence(&cfg.Redis, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize redis persistence: %v", err))
		}
		log.Info("using redis persistence", zap.String("address", cfg.Redis.Address))
	default:
		persistence, err = store.NewFilePersistence(cfg.Storage.Path, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize file persistence: %v", err))
		}
		log.Info("using file persistence", zap.String("path", cfg.Storage.Path))
	}

	// 初始化监控、提供商客户端和核心组件
	metrics := monitoring.NewMetrics()
	client := provider.NewClient(&cfg.Provider, metrics, log)
	mailboxStore := store.New(client, persistence, log)
	synchronizer := inbox.New(client, cfg.Sync.PollInterval, metrics, log)
	personaGen := persona.NewGenerator()
	healthChecker := health.NewHealthChecker(persistence, client, log)

	// 创建 WebSocket Hub 并接入事件流
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log)
	wsHub.OnClientCount(metrics.UpdateWebSocketClients)
	synchronizer.OnEvent(wsHub.NotifyEvent)
	synchronizer.OnEvent(func(event inbox.Event) {
		if event.Type == inbox.EventInboxUpdate {
			metrics.UpdateInboxMessages(len(event.Messages))
		}
	})

	// 激活邮箱变化驱动同步器换目标
	mailboxStore.OnActiveChange(synchronizer.SetActive)
	mailboxStore.OnActiveChange(func(*domain.Mailbox) {
		metrics.UpdateMailboxesHeld(len(mailboxStore.List()))
	})

	// 恢复或首次开通邮箱
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mailboxStore.Hydrate(startupCtx); err != nil {
		log.Warn("启动时开通邮箱失败，稍后可通过 API 重试", zap.Error(err))
	}
	cancelStartup()
	metrics.UpdateMailboxesHeld(len(mailboxStore.List()))

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		Store:         mailboxStore,
		Synchronizer:  synchronizer,
		DomainLister:  client,
		Personas:      personaGen,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		WebSocketHub:  wsHub,
		Logger:        log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 收件箱轮询 goroutine
	group.Go(func() error {
		log.Info("starting inbox synchronizer", zap.Duration("interval", cfg.Sync.PollInterval))
		return synchronizer.Run(groupCtx)
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("agent error", zap.Error(err))
	}

	log.Info("agent exited cleanly")
}

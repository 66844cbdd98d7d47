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

	"neonbrush/fileserver/internal/announce"
	"neonbrush/fileserver/internal/cache"
	"neonbrush/fileserver/internal/config"
	"neonbrush/fileserver/internal/health"
	"neonbrush/fileserver/internal/logger"
	"neonbrush/fileserver/internal/monitoring"
	"neonbrush/fileserver/internal/registry"
	"neonbrush/fileserver/internal/service"
	"neonbrush/fileserver/internal/storage/metadata"
	"neonbrush/fileserver/internal/storage/queue"
	httptransport "neonbrush/fileserver/internal/transport/http"
	"neonbrush/fileserver/internal/websocket"
)

// main 启动文件服务器：HTTP API、WebSocket 推送与 mDNS 通告。
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
		LogFile:     cfg.Log.LogFile,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting neonbrush file server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	store, err := metadata.NewStore(cfg.Storage.UploadsDir, cfg.Storage.MetadataDir, log)
	if err != nil {
		log.Fatal("failed to initialize metadata store", zap.Error(err))
	}
	log.Info("storage initialized",
		zap.String("uploads_dir", cfg.Storage.UploadsDir),
		zap.String("metadata_dir", cfg.Storage.MetadataDir),
	)

	emailQueue, err := queue.NewQueue(cfg.Storage.QueueFile(), log)
	if err != nil {
		log.Fatal("failed to initialize email queue", zap.Error(err))
	}
	log.Info("email queue initialized", zap.String("path", cfg.Storage.QueueFile()))

	// 初始化监控系统
	metrics := monitoring.NewMetrics()
	store.SetOrphanRecorder(metrics)

	// 初始化服务层
	aliasRegistry := registry.NewAliasRegistry(log)
	recentRecipients := cache.NewRecentRecipients(50, 30*24*time.Hour)
	fileService := service.NewFileService(store, aliasRegistry, log)
	emailService := service.NewEmailService(emailQueue, store, recentRecipients, log)

	// 初始化健康检查
	healthHandler := health.NewHandler(cfg.Storage.UploadsDir, cfg.Storage.MetadataDir, emailQueue, log)

	// 创建 WebSocket Hub
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, fileService, log)
	wsHub.SetClientGauge(metrics)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		FileService:  fileService,
		EmailService: emailService,
		WebSocketHub: wsHub,
		Metrics:      metrics,
		Health:       healthHandler,
		Logger:       log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// mDNS 服务通告
	var announcer *announce.Announcer
	if cfg.Announce.Enabled {
		announcer, err = announce.Start(cfg.Announce.Instance, cfg.Server.Port, log)
		if err != nil {
			log.Warn("mdns announcement failed, continuing without it", zap.Error(err))
		}
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	startedAt := time.Now()

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 定时刷新队列深度和运行时间指标 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				metrics.UpdateSystemUptime(time.Since(startedAt))
				stats, err := emailQueue.Stats()
				if err != nil {
					log.Warn("failed to read queue stats", zap.Error(err))
					continue
				}
				metrics.UpdateQueueDepth("pending", stats.Pending)
				metrics.UpdateQueueDepth("sending", stats.Sending)
				metrics.UpdateQueueDepth("sent", stats.Sent)
				metrics.UpdateQueueDepth("failed", stats.Failed)
			}
		}
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

		announcer.Shutdown()

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"neonbrush/fileserver/internal/config"
	"neonbrush/fileserver/internal/logger"
	"neonbrush/fileserver/internal/mail"
	"neonbrush/fileserver/internal/processor"
	"neonbrush/fileserver/internal/storage/queue"
)

// main 执行一轮邮件队列处理后退出。
//
// 设计为由 cron 或 systemd timer 周期调度；与在线服务共用同一份
// 队列文档但分开运行，投递失败不影响在线服务。
func main() {
	var (
		queuePath = flag.String("queue", "", "queue document path (default from config)")
		dryRun    = flag.Bool("dry-run", false, "log deliveries instead of sending")
		prune     = flag.Int("prune", -1, "remove jobs older than N hours after the pass (-1 uses config)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

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

	path := *queuePath
	if path == "" {
		path = cfg.Storage.QueueFile()
	}

	// 凭证校验：试运行时缺失凭证降级为告警
	if err := cfg.SMTP.Validate(*dryRun); err != nil {
		log.Fatal("smtp configuration invalid", zap.Error(err))
	}
	if *dryRun && (cfg.SMTP.User == "" || cfg.SMTP.Password == "") {
		log.Warn("smtp credentials not configured, dry run only")
	}

	var sender mail.Sender
	if *dryRun {
		sender = mail.NewDryRunSender(log)
	} else {
		sender = mail.NewSMTPSender(cfg.SMTP, log)
	}

	q := queue.Open(path, log)
	p := processor.New(q, sender, log,
		processor.WithSendDelay(cfg.Processor.SendDelay),
		processor.WithDryRun(*dryRun),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("queue processor starting",
		zap.String("queue", path),
		zap.Bool("dry_run", *dryRun),
	)

	result, err := p.Run(ctx)
	if err != nil {
		// 上下文取消：已完成的工作已落盘，按中断退出
		log.Fatal("queue pass aborted", zap.Error(err))
	}

	// 按保留窗口清理老任务
	retention := cfg.Processor.RetentionHours
	if *prune >= 0 {
		retention = *prune
	}
	if retention > 0 {
		removed, err := q.Prune(time.Duration(retention) * time.Hour)
		if err != nil {
			log.Error("failed to prune old jobs", zap.Error(err))
		} else if removed > 0 {
			log.Info("pruned old jobs",
				zap.Int("removed", removed),
				zap.Int("retention_hours", retention),
			)
		}
	}

	// 单个任务投递失败不算处理器失败，正常退出
	log.Info("queue processor finished",
		zap.Int("pending", result.Pending),
		zap.Int("sent", result.Sent),
		zap.Int("retried", result.Retried),
		zap.Int("failed", result.Failed),
	)
}

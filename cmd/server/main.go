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

	"adventai/backend/internal/composer"
	"adventai/backend/internal/config"
	"adventai/backend/internal/health"
	"adventai/backend/internal/logger"
	"adventai/backend/internal/mailer"
	"adventai/backend/internal/monitoring"
	"adventai/backend/internal/queue"
	"adventai/backend/internal/ratelimit"
	"adventai/backend/internal/service"
	"adventai/backend/internal/storage/sqlite"
	httptransport "adventai/backend/internal/transport/http"
)

// sweepInterval 限流器过期窗口的回收周期
const sweepInterval = 5 * time.Minute

// main 启动联系表单后端：HTTP API + 后台邮件投递 worker。
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
	log, err := logger.New(cfg.Log.Level, cfg.Log.Development, cfg.Log.File)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting contact intake server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层（嵌入式 SQLite，启动时自动迁移）
	store, err := sqlite.NewStore(cfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize sqlite storage: %v", err))
	}
	defer store.Close()
	log.Info("sqlite storage initialized", zap.String("path", cfg.Database.Path))

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化健康检查
	healthChecker := health.NewChecker(store)

	// 初始化限流器
	limiter := ratelimit.NewLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	log.Info("rate limiter initialized",
		zap.Int("max_requests", cfg.RateLimit.MaxRequests),
		zap.Duration("window", cfg.RateLimit.Window),
	)

	// 初始化邮件链路：撰写器 -> 投递队列 -> 传输层
	transport := mailer.NewTransport(cfg.SMTP, log)
	comp := composer.New(cfg.OpenAI, log)
	deliveryQueue := queue.New(
		queue.Policy{
			MaxAttempts: cfg.Queue.MaxAttempts,
			BaseBackoff: cfg.Queue.BaseBackoff,
			MaxBackoff:  cfg.Queue.MaxBackoff,
		},
		cfg.Queue.Capacity,
		cfg.Mail,
		comp,
		transport,
		store,
		metrics,
		log,
	)

	// 初始化业务服务
	contactService := service.NewContactService(store, deliveryQueue, metrics, log)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		ContactService: contactService,
		Limiter:        limiter,
		Metrics:        metrics,
		Health:         healthChecker,
		Logger:         log,
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

	// 邮件投递 worker goroutine
	group.Go(func() error {
		deliveryQueue.Run(groupCtx)
		return nil
	})

	// 定时回收限流器过期窗口 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if removed := limiter.Sweep(); removed > 0 {
					log.Debug("rate limiter buckets swept", zap.Int("removed", removed))
				}
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

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

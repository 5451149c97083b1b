package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paycore/internal/config"
	"paycore/internal/handler"
	"paycore/internal/infrastructure/cache"
	"paycore/internal/infrastructure/database"
	"paycore/internal/infrastructure/lock"
	"paycore/internal/infrastructure/mq"
	"paycore/internal/job"
	"paycore/internal/provider"
	"paycore/internal/service"
	"paycore/pkg/idgen"
	"paycore/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig("config/config.yaml")

	idgen.Init(1)

	db := database.InitMySQL(&cfg.MySQL)
	redisClient := cache.InitRedis(&cfg.Redis)
	lockStore := lock.NewRedisStore(redisClient)

	producer := mq.InitKafka(&cfg.Kafka)
	defer producer.Close()

	// 渠道验签器，凭据热更新时整体重建
	certCache := provider.NewCertificateCache()
	registry := provider.NewRegistry()
	rebuildVerifiers(registry, certCache, cfg.GetProviders())
	cfg.OnProvidersChange(func(p config.ProvidersConfig) {
		rebuildVerifiers(registry, certCache, p)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 平台证书刷新，实例本地任务
	providers := cfg.GetProviders()
	if providers.Wechat.CertURL != "" {
		downloader := provider.NewCertificateDownloader(
			providers.Wechat.CertURL,
			providers.Wechat.APIv3Key,
			certCache,
		)
		certJob := job.NewCertRefreshJob(
			downloader,
			time.Duration(providers.Wechat.CertRefreshMinutes)*time.Minute,
		)
		go certJob.Start(ctx)
	}

	// 全局单实例的周期任务，由分布式锁保证
	orderService := service.NewOrderService(db, cfg)
	expireRunner := job.NewRunner(
		"order_expire",
		lockStore,
		"pay:job:order_expire",
		30*time.Second,
		10*time.Second,
		job.NewOrderExpireJob(orderService).Run,
	)
	go expireRunner.Run(ctx)

	outboxRunner := job.NewRunner(
		"outbox_sender",
		lockStore,
		"pay:job:outbox_sender",
		30*time.Second,
		time.Second,
		job.NewOutboxSender(db, producer, cfg).Run,
	)
	go outboxRunner.Run(ctx)

	router := handler.SetupRouter(db, lockStore, cfg, registry)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.L.Info("服务启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.L.Info("正在关闭服务")

	// 先停后台任务，再关 HTTP
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("服务关闭异常", zap.Error(err))
	}

	logger.L.Info("服务已关闭")
}

// rebuildVerifiers 按最新凭据重建验签器集合
func rebuildVerifiers(registry *provider.Registry, certCache *provider.CertificateCache, p config.ProvidersConfig) {
	if p.Alipay.PublicKeyPEM != "" {
		alipay, err := provider.NewAlipayVerifier(p.Alipay.PublicKeyPEM)
		if err != nil {
			logger.L.Error("加载支付宝公钥失败", zap.Error(err))
		} else {
			registry.SetAlipay(alipay)
		}
	}

	if p.Wechat.APIv3Key != "" {
		registry.SetWechat(provider.NewWechatVerifier(p.Wechat.APIv3Key, certCache))
	}

	if p.Ikunpay.Secret != "" {
		registry.SetIkunpay(provider.NewIkunpayVerifier(p.Ikunpay.Secret))
	}

	if p.Gateway.Secret != "" {
		registry.SetGateway(provider.NewGatewayVerifier(p.Gateway.Secret))
	}
}

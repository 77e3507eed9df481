package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrimatch/internal/config"
	"agrimatch/internal/handler"
	"agrimatch/internal/infrastructure/cache"
	"agrimatch/internal/infrastructure/database"
	"agrimatch/internal/infrastructure/giftcard"
	"agrimatch/internal/infrastructure/lock"
	"agrimatch/internal/infrastructure/mq"
	"agrimatch/internal/infrastructure/telemetry"
	"agrimatch/internal/job"
	"agrimatch/internal/service"
	"agrimatch/pkg/auth"
	"agrimatch/pkg/idgen"
	"agrimatch/pkg/logger"

	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker-id", 1, "雪花算法机器ID")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	// 初始化 ID 生成器
	if err := idgen.Init(*workerID); err != nil {
		log.Fatal().Err(err).Msg("初始化 ID 生成器失败")
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracer(ctx, &cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	db, err := database.Open(&cfg.Database, cfg.Log.Level)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化数据库失败")
	}

	lockWait := time.Duration(cfg.Ledger.LockRetryMs*cfg.Ledger.LockMaxRetries) * time.Millisecond
	var locker lock.Locker = lock.NewLocalLocker(lockWait)
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedis(&cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("初始化 Redis 失败")
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb,
			time.Duration(cfg.Ledger.LockTTLSeconds)*time.Second,
			time.Duration(cfg.Ledger.LockRetryMs)*time.Millisecond,
			cfg.Ledger.LockMaxRetries)
	} else {
		log.Warn().Msg("Redis 未启用，使用进程内用户锁，仅适用于单实例部署")
	}

	var eventTopic string
	if cfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(&cfg.Kafka)
		if err != nil {
			log.Fatal().Err(err).Msg("初始化 Kafka 失败")
		}
		publisher := mq.NewKafkaPublisher(producer)
		defer publisher.Close()

		eventTopic = cfg.Kafka.Topic.PointsChanged
		outboxSender := job.NewOutboxSender(db, publisher,
			time.Duration(cfg.Business.OutboxIntervalMs)*time.Millisecond,
			cfg.Business.MaxRetryCount)
		go outboxSender.Start(ctx)
	}

	rate, _ := cfg.Ledger.CnyRate()
	ledger := service.NewLedger(db, locker, service.LedgerOptions{
		RedeemCnyRate: rate,
		EventTopic:    eventTopic,
	})
	limits := service.Limits{
		RechargeMax:    cfg.Ledger.RechargeMax,
		RechargeDayMax: cfg.Ledger.RechargeDayMax,
		RedeemMax:      cfg.Ledger.RedeemMax,
		RedeemDayMax:   cfg.Ledger.RedeemDayMax,
	}
	rechargeService := service.NewRechargeService(db, ledger, limits, cfg.Ledger.QRCodeBaseURL)
	cardService := service.NewCardService(db, ledger, giftcard.NewIssuer(&cfg.GiftCard), limits)

	// 启动后台任务
	timeoutJob := job.NewRechargeTimeoutJob(rechargeService,
		time.Duration(cfg.Business.RechargeOrderTimeoutMinutes)*time.Minute)
	go timeoutJob.Start(ctx)

	// 设置路由
	var serviceName string
	if cfg.Telemetry.Enabled {
		serviceName = cfg.Telemetry.ServiceName
	}
	tokens := auth.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpireMinutes)*time.Minute)
	router := handler.SetupRouter(handler.NewHandler(ledger, rechargeService, cardService), tokens, handler.RouterOptions{
		Mode:        cfg.Server.Mode,
		ServiceName: serviceName,
		CookieName:  cfg.JWT.CookieName,
	})

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("服务启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("服务启动失败")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("服务关闭异常")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("关闭链路追踪异常")
	}

	log.Info().Msg("服务已关闭")
}

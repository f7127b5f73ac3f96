package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/ainexus_server/config"
	"github.com/qs3c/ainexus_server/internal/api"
	"github.com/qs3c/ainexus_server/internal/api/handler"
	"github.com/qs3c/ainexus_server/internal/database"
	"github.com/qs3c/ainexus_server/internal/pkg/cron"
	"github.com/qs3c/ainexus_server/internal/pkg/dedup"
	"github.com/qs3c/ainexus_server/internal/pkg/metrics"
	"github.com/qs3c/ainexus_server/internal/pkg/plan"
	"github.com/qs3c/ainexus_server/internal/pkg/pubsub"
	"github.com/qs3c/ainexus_server/internal/pkg/queue"
	"github.com/qs3c/ainexus_server/internal/pkg/razorpay"
	"github.com/qs3c/ainexus_server/internal/pkg/signature"
	"github.com/qs3c/ainexus_server/internal/pkg/stripe"
	"github.com/qs3c/ainexus_server/internal/pkg/ws"
	"github.com/qs3c/ainexus_server/internal/repository"
	"github.com/qs3c/ainexus_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Printf("Database connected (%s)", db.Dialector.Name())

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 指标
	registry := metrics.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(registry)

	// 套餐目录与支付渠道
	catalog := plan.Default().WithStripePrices(cfg.Stripe.Prices)
	stripeClient := stripe.NewClient(cfg.Stripe.SecretKey)
	razorpayClient := razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.BaseURL)
	if cfg.Stripe.WebhookSecret == "" || cfg.Razorpay.WebhookSecret == "" {
		log.Println("Warning: webhook secret not configured, webhooks will be rejected")
	}

	// 初始化 Queue 和 Pub/Sub
	emailQueue := queue.NewQueue(rdb, cfg.Queue.EmailQueue)
	publisher := pubsub.NewPublisher(rdb)
	deduper := dedup.NewStore(rdb, time.Duration(cfg.Webhook.DedupTTLHours)*time.Hour)

	// 初始化 WebSocket Hub，订阅事件按钱包推送
	wsHub := ws.NewHub()
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(ctx, func(msg *pubsub.SubscriptionMessage) {
			if err := wsHub.SendToWallet(msg.WalletAddress, &ws.Message{Type: msg.Type, Data: msg}); err != nil {
				log.Printf("Failed to push %s to wallet %s: %v", msg.Type, msg.WalletAddress, err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Subscription event listener stopped: %v", err)
		}
	}()
	log.Println("WebSocket hub started")

	// 初始化 Repository
	subRepo := repository.NewSubscriptionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)

	// 初始化 Service
	checkoutService := service.NewCheckoutService(sessionRepo, catalog, stripeClient, razorpayClient, cfg, billingMetrics)
	paymentService := service.NewPaymentService(subRepo, sessionRepo, catalog,
		signature.NewHMAC(cfg.Razorpay.KeySecret), publisher, billingMetrics)
	webhookService := service.NewWebhookService(subRepo, sessionRepo, catalog, cfg.Stripe.WebhookSecret,
		signature.NewHMAC(cfg.Razorpay.WebhookSecret), deduper, publisher, billingMetrics)
	quotaService := service.NewQuotaService(subRepo, publisher, billingMetrics)
	waitlistService := service.NewWaitlistService(waitlistRepo, emailQueue)

	// 定时刷新 gauge
	cronService := cron.NewService(subRepo, waitlistRepo, billingMetrics,
		[]string{plan.Starter, plan.Professional, plan.Enterprise},
		time.Duration(cfg.Metrics.RefreshSeconds)*time.Second)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Handler
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	webhookHandler := handler.NewWebhookHandler(webhookService)
	subscriptionHandler := handler.NewSubscriptionHandler(quotaService)
	plansHandler := handler.NewPlansHandler(catalog, cfg.Razorpay.Currency)
	waitlistHandler := handler.NewWaitlistHandler(waitlistService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(
		checkoutHandler,
		paymentHandler,
		webhookHandler,
		subscriptionHandler,
		plansHandler,
		waitlistHandler,
		websocketHandler,
		registry,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Printf("Redis close error: %v", err)
	}
	log.Println("Server shutdown complete")
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qs3c/ainexus_server/config"
	"github.com/qs3c/ainexus_server/internal/api/handler"
	"github.com/qs3c/ainexus_server/internal/api/middleware"
)

type Router struct {
	checkoutHandler     *handler.CheckoutHandler
	paymentHandler      *handler.PaymentHandler
	webhookHandler      *handler.WebhookHandler
	subscriptionHandler *handler.SubscriptionHandler
	plansHandler        *handler.PlansHandler
	waitlistHandler     *handler.WaitlistHandler
	websocketHandler    *handler.WebSocketHandler
	registry            *prometheus.Registry
	cfg                 *config.Config
}

func NewRouter(
	checkoutHandler *handler.CheckoutHandler,
	paymentHandler *handler.PaymentHandler,
	webhookHandler *handler.WebhookHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	plansHandler *handler.PlansHandler,
	waitlistHandler *handler.WaitlistHandler,
	websocketHandler *handler.WebSocketHandler,
	registry *prometheus.Registry,
	cfg *config.Config,
) *Router {
	return &Router{
		checkoutHandler:     checkoutHandler,
		paymentHandler:      paymentHandler,
		webhookHandler:      webhookHandler,
		subscriptionHandler: subscriptionHandler,
		plansHandler:        plansHandler,
		waitlistHandler:     waitlistHandler,
		websocketHandler:    websocketHandler,
		registry:            registry,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if r.registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})))
	}

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 套餐
		api.GET("/plans", r.plansHandler.List)

		// Stripe
		stripe := api.Group("/stripe")
		{
			stripe.POST("/create-checkout", r.checkoutHandler.CreateStripeCheckout)
			stripe.POST("/webhook", r.webhookHandler.Stripe)
		}

		// Razorpay
		razorpay := api.Group("/razorpay")
		{
			razorpay.POST("/create-order", r.checkoutHandler.CreateRazorpayOrder)
			razorpay.POST("/verify-payment", r.paymentHandler.VerifyRazorpayPayment)
			razorpay.POST("/webhook", r.webhookHandler.Razorpay)
		}

		// 订阅与配额
		subscription := api.Group("/subscription")
		{
			subscription.GET("/status", r.subscriptionHandler.Status)
			subscription.POST("/upload", r.subscriptionHandler.Upload)
		}

		// 候补名单
		api.POST("/waitlist", r.waitlistHandler.Join)

		admin := api.Group("")
		admin.Use(middleware.AdminAuth(r.cfg.JWT.Secret))
		{
			admin.GET("/waitlist/stats", r.waitlistHandler.Stats)
		}
	}

	return engine
}

package handler

import (
	"net/http"

	"rebooked-marketplace/internal/adapter/http/middleware"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	CheckoutSvc      ports.CheckoutService
	WebhookSvc       ports.WebhookService
	OrderSvc         ports.OrderService
	CourierSvc       ports.CourierService
	NotificationSvc  ports.NotificationService
	SweepSvc         ports.SweepService
	Jobs             JobRunner
	TokenSvc         ports.TokenService
	HashSvc          ports.HashService
	ServiceTokenHash string
	RateLimitStore   middleware.Limiter // nil = rate limiting disabled
	HealthCheckers   []ports.HealthChecker
	HTTPMetrics      *metrics.HTTPMetrics
	MetricsHandler   http.Handler // nil = no /metrics
	AllowedOrigins   []string
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoRoute(middleware.NoRoute())
	r.NoMethod(middleware.NoMethod())

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.CORS(deps.AllowedOrigins))
	r.Use(middleware.Metrics(deps.HTTPMetrics))
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(middleware.AuditLog(deps.Logger))

	// Health check (deep: PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	courierHandler := NewCourierHandler(deps.CourierSvc)
	v1.POST("/courier/quotes", rl("courier_quotes"), courierHandler.Quotes)

	// signature-verified inside the webhook service
	webhookHandler := NewWebhookHandler(deps.WebhookSvc)
	v1.POST("/webhooks/paystack", webhookHandler.Paystack)

	// --- User routes (Supabase JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	checkoutHandler := NewCheckoutHandler(deps.CheckoutSvc)
	v1.POST("/checkout/initialize", jwtAuth, rl("checkout"), checkoutHandler.Initialize)

	orderHandler := NewOrderHandler(deps.OrderSvc)
	orders := v1.Group("/orders", jwtAuth)
	{
		orders.GET("", rl("orders"), orderHandler.List)
		orders.GET("/:id", rl("orders"), orderHandler.Get)
		orders.POST("/:id/commit", rl("orders_lifecycle"), orderHandler.Commit)
		orders.POST("/:id/decline", rl("orders_lifecycle"), orderHandler.Decline)
		orders.POST("/:id/cancel", rl("orders_lifecycle"), orderHandler.Cancel)
		orders.POST("/:id/schedule-courier", rl("orders_lifecycle"), orderHandler.ScheduleCourier)
		orders.POST("/:id/collected", rl("orders_lifecycle"), orderHandler.MarkCollected)
		orders.POST("/:id/delivered", rl("orders_lifecycle"), orderHandler.ConfirmDelivery)
	}

	notificationHandler := NewNotificationHandler(deps.NotificationSvc)
	notifications := v1.Group("/notifications", jwtAuth)
	{
		notifications.GET("", rl("notifications"), notificationHandler.List)
		notifications.POST("/:id/read", rl("notifications"), notificationHandler.MarkRead)
	}

	// --- Internal routes (service token) ---
	serviceAuth := middleware.ServiceTokenAuth(deps.HashSvc, deps.ServiceTokenHash, deps.Logger)
	internalHandler := NewInternalHandler(deps.SweepSvc, deps.OrderSvc, deps.NotificationSvc, deps.Jobs, deps.Logger)
	internal := v1.Group("/internal", serviceAuth)
	{
		internal.POST("/sweeps/auto-expire", internalHandler.AutoExpire)
		internal.POST("/sweeps/check-expired-orders", internalHandler.CheckExpiredOrders)
		internal.POST("/payments/:reference/orders", internalHandler.ReconcileOrders)
		internal.POST("/broadcasts", internalHandler.Broadcast)
	}

	return r
}

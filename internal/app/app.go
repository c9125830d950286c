// Package app assembles the services shared by the api and sweeper binaries.
package app

import (
	"errors"
	"time"

	"rebooked-marketplace/config"
	"rebooked-marketplace/internal/adapter/courier/courierguy"
	"rebooked-marketplace/internal/adapter/courier/fastway"
	"rebooked-marketplace/internal/adapter/email/brevo"
	"rebooked-marketplace/internal/adapter/gateway/paystack"
	pgStorage "rebooked-marketplace/internal/adapter/storage/postgres"
	redisStorage "rebooked-marketplace/internal/adapter/storage/redis"
	"rebooked-marketplace/internal/core/ports"
	"rebooked-marketplace/internal/cron"
	"rebooked-marketplace/internal/service"
	"rebooked-marketplace/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Params are the process-level resources the container is built from.
type Params struct {
	Config   *config.Config
	Pool     pgStorage.Pool
	Redis    goredis.Cmdable
	Registry prometheus.Registerer
	Logger   zerolog.Logger
}

// Container holds the wired services.
type Container struct {
	Checkout      *service.CheckoutServiceImpl
	Webhook       *service.WebhookServiceImpl
	Orders        *service.OrderServiceImpl
	Courier       *service.CourierServiceImpl
	Notifications *service.NotificationServiceImpl
	Refunds       *service.RefundServiceImpl
	Sweeps        *service.SweepServiceImpl
	Tokens        *service.SupabaseTokenService
	Hashes        *service.Argon2HashService
	Jobs          *cron.Service

	RateLimits     *redisStorage.RateLimitStore
	HealthCheckers []ports.HealthChecker
	HTTPMetrics    *metrics.HTTPMetrics
}

// New wires repositories, provider adapters and services.
func New(p Params) (*Container, error) {
	if p.Config == nil {
		return nil, errors.New("config is required")
	}
	if p.Pool == nil {
		return nil, errors.New("database pool is required")
	}
	if p.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if p.Registry == nil {
		p.Registry = prometheus.NewRegistry()
	}
	cfg := p.Config
	log := p.Logger

	orderRepo := pgStorage.NewOrderRepo(p.Pool)
	bookRepo := pgStorage.NewBookRepo(p.Pool)
	paymentRepo := pgStorage.NewPaymentRepo(p.Pool)
	refundRepo := pgStorage.NewRefundRepo(p.Pool)
	profileRepo := pgStorage.NewProfileRepo(p.Pool)
	notificationRepo := pgStorage.NewNotificationRepo(p.Pool)
	eventRepo := pgStorage.NewOrderEventRepo(p.Pool)
	transactor := pgStorage.NewTransactor(p.Pool)

	idempotencyCache := redisStorage.NewIdempotencyCache(p.Redis)
	eventGuard := redisStorage.NewEventGuard(p.Redis)

	encSvc, err := service.NewAESEncryptionService(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}
	sigSvc := service.NewHMACSignatureService()

	gateway, err := paystack.NewClient(cfg.Paystack.SecretKey, log,
		paystack.WithBaseURL(cfg.Paystack.BaseURL),
		paystack.WithTimeout(cfg.HTTP.Timeout),
	)
	if err != nil {
		return nil, err
	}
	courierGuy := courierguy.NewClient(cfg.Courier.CourierGuyAPIKey,
		courierguy.WithBaseURL(cfg.Courier.CourierGuyBaseURL),
		courierguy.WithTimeout(cfg.HTTP.Timeout),
	)
	fastwayClient := fastway.NewClient(cfg.Courier.FastwayAPIKey,
		fastway.WithBaseURL(cfg.Courier.FastwayBaseURL),
		fastway.WithTimeout(cfg.HTTP.Timeout),
	)
	mailer := brevo.NewClient(cfg.Email.BrevoAPIKey, cfg.Email.SenderName, cfg.Email.SenderEmail,
		brevo.WithBaseURL(cfg.Email.BrevoBaseURL),
		brevo.WithTimeout(cfg.HTTP.Timeout),
	)
	if !mailer.Enabled() {
		log.Warn().Msg("Brevo API key not set, emails will not be sent")
	}

	domainMetrics := metrics.NewDomainMetrics(p.Registry)
	sweepMetrics := metrics.NewSweepMetrics(p.Registry)
	lifecycle := service.LifecycleConfig{
		CommitWindow:          cfg.Lifecycle.CommitWindow,
		CollectionTimeout:     cfg.Lifecycle.CollectionTimeout,
		DeliveryTimeout:       cfg.Lifecycle.DeliveryTimeout,
		DeliveryTimeoutPolicy: cfg.Lifecycle.DeliveryTimeoutPolicy,
	}

	notificationSvc := service.NewNotificationService(notificationRepo, profileRepo, mailer, cfg.Email.AdminEmail,
		log.With().Str("component", "notifications").Logger())
	courierSvc := service.NewCourierService([]ports.CourierProvider{courierGuy, fastwayClient}, courierGuy, domainMetrics,
		log.With().Str("component", "courier").Logger())
	refundSvc := service.NewRefundService(gateway, refundRepo, orderRepo, notificationSvc,
		log.With().Str("component", "refunds").Logger())
	orderSvc := service.NewOrderService(service.OrderDeps{
		Orders:     orderRepo,
		Books:      bookRepo,
		Payments:   paymentRepo,
		Refunds:    refundRepo,
		Events:     eventRepo,
		Profiles:   profileRepo,
		Transactor: transactor,
		Courier:    courierSvc,
		RefundSvc:  refundSvc,
		Notifier:   notificationSvc,
		Metrics:    domainMetrics,
	}, lifecycle, log.With().Str("component", "orders").Logger())
	webhookSvc := service.NewWebhookService(cfg.Paystack.SecretKey, paymentRepo, bookRepo, orderSvc, sigSvc, encSvc,
		eventGuard, domainMetrics, log.With().Str("component", "webhooks").Logger())
	sweepSvc := service.NewSweepService(orderRepo, bookRepo, orderSvc, notificationSvc, lifecycle, cfg.Sweeper.BatchSize,
		log.With().Str("component", "sweeps").Logger())
	checkoutSvc := service.NewCheckoutService(bookRepo, profileRepo, paymentRepo, gateway, idempotencyCache, transactor,
		service.CheckoutConfig{
			ReservationTTL:     cfg.Checkout.ReservationTTL,
			Currency:           cfg.Checkout.Currency,
			CallbackURL:        cfg.Paystack.CallbackURL,
			PlatformSubaccount: cfg.Paystack.PlatformSubaccount,
			IdempotencyTTL:     cfg.Checkout.IdempotencyTTL,
		}, log.With().Str("component", "checkout").Logger())

	registry := cron.NewRegistry(
		cron.NewAutoExpireJob(sweepSvc, sweepMetrics),
		cron.NewExpiryCheckJob(sweepSvc, sweepMetrics),
	)
	jobs, err := cron.NewService(cron.ServiceParams{
		Logger:   log,
		Registry: registry,
		Locks:    JobLocks(p.Redis, cfg.Sweeper.LockTTL),
		Metrics:  sweepMetrics,
	})
	if err != nil {
		return nil, err
	}

	return &Container{
		Checkout:      checkoutSvc,
		Webhook:       webhookSvc,
		Orders:        orderSvc,
		Courier:       courierSvc,
		Notifications: notificationSvc,
		Refunds:       refundSvc,
		Sweeps:        sweepSvc,
		Tokens:        service.NewSupabaseTokenService(cfg.Auth.SupabaseJWTSecret),
		Hashes:        service.NewArgon2HashService(),
		Jobs:          jobs,

		RateLimits:     redisStorage.NewRateLimitStore(p.Redis),
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(p.Pool), redisStorage.NewHealthCheck(p.Redis)},
		HTTPMetrics:    metrics.NewHTTPMetrics(p.Registry),
	}, nil
}

// JobLocks returns a lock factory keyed per job.
func JobLocks(client goredis.Cmdable, ttl time.Duration) cron.LockFactory {
	return func(job string) (cron.Lock, error) {
		lock, err := redisStorage.NewLock(client, "sweeper:"+job, ttl)
		if err != nil {
			return nil, err
		}
		return lock, nil
	}
}

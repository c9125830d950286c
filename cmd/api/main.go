package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rebooked-marketplace/config"
	httpHandler "rebooked-marketplace/internal/adapter/http/handler"
	pgStorage "rebooked-marketplace/internal/adapter/storage/postgres"
	redisStorage "rebooked-marketplace/internal/adapter/storage/redis"
	"rebooked-marketplace/internal/app"
	"rebooked-marketplace/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// .env is optional, real deployments set RB_* directly
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("RB_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting ReBooked marketplace API")

	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	container, err := app.New(app.Params{
		Config:   cfg,
		Pool:     pool,
		Redis:    rdb,
		Registry: reg,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire services")
	}
	if cfg.Auth.ServiceTokenHash == "" {
		log.Warn().Msg("Service token hash not set, internal routes will reject every call")
	}

	// RB_OPENAPI_FILE swaps the embedded document, handy while editing it
	if path := os.Getenv("RB_OPENAPI_FILE"); path != "" {
		if specBytes, err := os.ReadFile(path); err == nil {
			httpHandler.SetSwaggerSpec(specBytes)
			log.Info().Str("path", path).Msg("OpenAPI override loaded for Swagger UI")
		} else {
			log.Warn().Err(err).Str("path", path).Msg("OpenAPI override not readable, serving embedded spec")
		}
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		CheckoutSvc:      container.Checkout,
		WebhookSvc:       container.Webhook,
		OrderSvc:         container.Orders,
		CourierSvc:       container.Courier,
		NotificationSvc:  container.Notifications,
		SweepSvc:         container.Sweeps,
		Jobs:             container.Jobs,
		TokenSvc:         container.Tokens,
		HashSvc:          container.Hashes,
		ServiceTokenHash: cfg.Auth.ServiceTokenHash,
		RateLimitStore:   container.RateLimits,
		HealthCheckers:   container.HealthCheckers,
		HTTPMetrics:      container.HTTPMetrics,
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		Logger:           log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

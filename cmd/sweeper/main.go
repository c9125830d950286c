package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rebooked-marketplace/config"
	pgStorage "rebooked-marketplace/internal/adapter/storage/postgres"
	redisStorage "rebooked-marketplace/internal/adapter/storage/redis"
	"rebooked-marketplace/internal/app"
	"rebooked-marketplace/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

func main() {
	once := flag.Bool("once", false, "run every sweep once and exit")
	job := flag.String("job", "", "with -once, run only this job")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("RB_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Component(logger.New(cfg.Log.Level, cfg.Log.Pretty), "sweeper")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	container, err := app.New(app.Params{
		Config:   cfg,
		Pool:     pool,
		Redis:    rdb,
		Registry: prometheus.NewRegistry(),
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire services")
	}

	if *once {
		if *job != "" {
			if err := container.Jobs.Run(ctx, *job); err != nil {
				log.Error().Err(err).Str("job", *job).Msg("Sweep failed")
				os.Exit(1)
			}
			return
		}
		container.Jobs.RunAll(ctx)
		return
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Sweeper.Schedule, func() {
		container.Jobs.RunAll(ctx)
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Sweeper.Schedule).Msg("Invalid sweeper schedule")
	}
	scheduler.Start()
	log.Info().Str("schedule", cfg.Sweeper.Schedule).Msg("Sweeper started")

	<-ctx.Done()
	log.Info().Msg("Sweeper shutting down, waiting for running jobs")
	<-scheduler.Stop().Done()
	log.Info().Msg("Sweeper exited")
}

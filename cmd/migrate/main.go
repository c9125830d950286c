package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"rebooked-marketplace/config"
	pgStorage "rebooked-marketplace/internal/adapter/storage/postgres"
	"rebooked-marketplace/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "goose command: up|up-by-one|up-to|down|down-to|redo|reset|status|version")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("RB_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Component(logger.New(cfg.Log.Level, cfg.Log.Pretty), "migrate")

	// extra positional args go to goose, e.g. the target of up-to
	args := flag.Args()
	log.Info().Str("cmd", *cmd).Strs("args", args).Msg("running migrations")

	if err := pgStorage.Migrate(context.Background(), cfg.Database.DSN(), *cmd, args...); err != nil {
		log.Error().Err(err).Str("cmd", *cmd).Msg("migration failed")
		os.Exit(1)
	}
	log.Info().Str("cmd", *cmd).Msg("migrations complete")
}

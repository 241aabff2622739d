// Package main is the entrypoint for the Warden server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iteksmart/warden/internal/api"
	"github.com/iteksmart/warden/internal/auth"
	"github.com/iteksmart/warden/internal/config"
	"github.com/iteksmart/warden/internal/db"
	"github.com/iteksmart/warden/internal/maintenance"
	"github.com/iteksmart/warden/internal/metrics"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
		return 1
	}

	if cfg.Environment != config.EnvProduction {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Str("environment", string(cfg.Environment)).
		Msg("Starting Warden server")

	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
		return 1
	}

	tokens := auth.NewTokenManager(cfg.AdminTokenSecret, cfg.AdminTokenTTL)
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	routerCfg := api.Config{
		RateLimit: cfg.RateLimit,
		RedisURL:  cfg.RedisURL,
		Version:   Version,
	}
	router, err := api.NewRouter(routerCfg, database, tokens, collector, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	sweeper := maintenance.NewRetentionSweeper(database, cfg.MetricRetentionDays, logger)
	if err := sweeper.Start(cfg.RetentionSchedule); err != nil {
		logger.Error().Err(err).Msg("Failed to start retention sweeper")
	}
	defer sweeper.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
		return 1
	}

	logger.Info().Msg("Server stopped")
	return 0
}

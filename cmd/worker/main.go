package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/divyandj/IMAGE-Hackathon/internal/cache"
	"github.com/divyandj/IMAGE-Hackathon/internal/config"
	"github.com/divyandj/IMAGE-Hackathon/internal/database"
	"github.com/divyandj/IMAGE-Hackathon/internal/log"
	"github.com/divyandj/IMAGE-Hackathon/internal/queue"
	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
	"github.com/divyandj/IMAGE-Hackathon/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Log.Level).With().Str("service", "worker").Logger()

	if err := cfg.ValidateWorker(); err != nil {
		logger.Fatal().Err(err).Msg("invalid worker configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init file storage")
	}

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	processor := tasks.NewProcessor(store.Images, files, cache.NewLeaderboard(client), cfg.Jobs.OrphanTTL, logger)

	// The leaderboard may be empty after a redis restart; rebuild it before consuming.
	if err := processor.Run(ctx, queue.Task{Type: queue.TaskLeaderboardRebuild}); err != nil {
		logger.Warn().Err(err).Msg("initial leaderboard rebuild failed")
	}

	consumer := queue.NewConsumer(client, cfg.Worker, logger, processor)

	logger.Info().
		Str("stream", cfg.Worker.Stream).
		Str("group", cfg.Worker.Group).
		Str("consumer", cfg.Worker.Consumer).
		Msg("worker started")

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Close(closeCtx); err != nil {
		logger.Error().Err(err).Msg("store close error")
	}
	logger.Info().Msg("worker exited")
}

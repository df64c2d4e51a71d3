package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/divyandj/IMAGE-Hackathon/internal/cache"
	"github.com/divyandj/IMAGE-Hackathon/internal/config"
	"github.com/divyandj/IMAGE-Hackathon/internal/database"
	"github.com/divyandj/IMAGE-Hackathon/internal/events"
	"github.com/divyandj/IMAGE-Hackathon/internal/generator"
	"github.com/divyandj/IMAGE-Hackathon/internal/handlers"
	"github.com/divyandj/IMAGE-Hackathon/internal/jobs"
	"github.com/divyandj/IMAGE-Hackathon/internal/log"
	"github.com/divyandj/IMAGE-Hackathon/internal/queue"
	"github.com/divyandj/IMAGE-Hackathon/internal/repository"
	"github.com/divyandj/IMAGE-Hackathon/internal/security"
	"github.com/divyandj/IMAGE-Hackathon/internal/server"
	"github.com/divyandj/IMAGE-Hackathon/internal/service"
	"github.com/divyandj/IMAGE-Hackathon/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Log.Level)

	if cfg.Security.TokenSecret == "" {
		secret, err := security.RandomSecret()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to generate token secret")
		}
		cfg.Security.TokenSecret = secret
		logger.Warn().Msg("security.tokensecret not set, using a random secret; tokens will not survive a restart")
	}
	if cfg.Generator.APIKey == "" {
		logger.Warn().Msg("generator.apikey not set, generation requests will fail")
	}

	ctx := context.Background()

	store, err := database.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store ready")

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to init file storage")
	}

	// Redis backs the leaderboard and the task stream. Without it both are switched off.
	var (
		redisClient *redis.Client
		leaderboard service.Leaderboard
		tasks       queue.Enqueuer
		cachePing   handlers.Pinger
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, leaderboard and background tasks disabled")
		} else {
			leaderboard = cache.NewLeaderboard(redisClient)
			tasks = queue.NewProducer(redisClient, cfg.Worker.Stream)
			cachePing = cache.Pinger(redisClient)
		}
	}

	hub := events.NewHub(logger)
	client := generator.NewOpenAIClient(cfg.Generator, files, logger)

	uploads := service.NewUploadService(files, cfg.Storage.MaxUploadSize, logger)
	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Deps{
		Auth:      service.NewAuthService(store.Users, cfg.Security, logger),
		Gallery:   service.NewGalleryService(store.Images, leaderboard, hub, tasks, logger),
		Uploads:   uploads,
		Studio:    service.NewStudioService(client, uploads, logger),
		Files:     files,
		Hub:       hub,
		StorePing: store.Ping,
		CachePing: cachePing,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(tasks, cfg.Jobs, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, hub, store, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, hub *events.Hub, store *repository.Store, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Feed connections are hijacked and would otherwise hold Shutdown open.
	hub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduled jobs still running at shutdown")
	}

	if err := store.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("store close error")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}

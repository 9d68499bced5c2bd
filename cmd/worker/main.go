package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"mediavault/internal/bootstrap"
	"mediavault/internal/cache"
	"mediavault/internal/config"
	"mediavault/internal/log"
	"mediavault/internal/queue"
	"mediavault/internal/service"
	"mediavault/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Log.Level)

	if !cfg.Redis.Enabled {
		logger.Fatal().Msg("worker requires redis.enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	db, err := bootstrap.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	blobs, err := bootstrap.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}

	images := service.NewImageService(db, blobs, service.Options{
		DatabaseTimeout: cfg.Database.RequestTimeout,
		StorageTimeout:  cfg.Storage.RequestTimeout,
		Logger:          logger,
	})

	processor := tasks.NewProcessor(logger, tasks.Options{
		Renditions:   cache.NewRenditions(client, cfg.Render.CacheTTL),
		Images:       images,
		Streams:      client,
		Stream:       cfg.Redis.Stream,
		RetainEvents: cfg.Redis.StreamMaxLen,
	})
	consumer := queue.NewConsumer(
		client,
		cfg.Redis.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)

	logger.Info().
		Str("stream", cfg.Redis.Stream).
		Str("group", cfg.Worker.Group).
		Str("consumer", cfg.Worker.Consumer).
		Msg("worker starting")

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("worker exited")
}

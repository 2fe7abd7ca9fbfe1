package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kouriin1/Servicio-Comunitario/internal/cache"
	"github.com/Kouriin1/Servicio-Comunitario/internal/config"
	"github.com/Kouriin1/Servicio-Comunitario/internal/database"
	"github.com/Kouriin1/Servicio-Comunitario/internal/log"
	"github.com/Kouriin1/Servicio-Comunitario/internal/mail"
	"github.com/Kouriin1/Servicio-Comunitario/internal/queue"
	"github.com/Kouriin1/Servicio-Comunitario/internal/repository"
	"github.com/Kouriin1/Servicio-Comunitario/internal/storage"
	"github.com/Kouriin1/Servicio-Comunitario/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	// the api process owns migrations
	pgCfg := cfg.Postgres
	pgCfg.AutoMigrate = false
	dbPool, err := database.NewPostgresPool(ctx, pgCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	processor := tasks.NewProcessor(
		mail.NewMailer(cfg.Mail, logger),
		storage.NewOrphans(client),
		objectStore,
		repository.NewSessionRepository(dbPool),
		logger,
	)
	consumer := queue.NewConsumer(
		client,
		cfg.Queue.Stream,
		cfg.Queue.Group,
		cfg.Queue.Consumer,
		cfg.Queue.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}

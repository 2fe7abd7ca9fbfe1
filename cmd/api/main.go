package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Kouriin1/Servicio-Comunitario/internal/cache"
	"github.com/Kouriin1/Servicio-Comunitario/internal/config"
	"github.com/Kouriin1/Servicio-Comunitario/internal/content"
	"github.com/Kouriin1/Servicio-Comunitario/internal/database"
	"github.com/Kouriin1/Servicio-Comunitario/internal/handlers"
	"github.com/Kouriin1/Servicio-Comunitario/internal/identity"
	"github.com/Kouriin1/Servicio-Comunitario/internal/jobs"
	"github.com/Kouriin1/Servicio-Comunitario/internal/log"
	"github.com/Kouriin1/Servicio-Comunitario/internal/metrics"
	"github.com/Kouriin1/Servicio-Comunitario/internal/queue"
	"github.com/Kouriin1/Servicio-Comunitario/internal/repository"
	"github.com/Kouriin1/Servicio-Comunitario/internal/server"
	"github.com/Kouriin1/Servicio-Comunitario/internal/session"
	"github.com/Kouriin1/Servicio-Comunitario/internal/storage"
	"github.com/Kouriin1/Servicio-Comunitario/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	accounts := repository.NewAccountRepository(dbPool)
	sessions := repository.NewSessionRepository(dbPool)
	profiles := repository.NewProfileRepository(dbPool)
	producer := queue.NewProducer(redisClient, cfg.Queue.Stream)

	identityService := identity.NewService(accounts, sessions, profiles, redisClient, producer, cfg.Security, cfg.Portal, logger)

	registry, err := workspace.NewRegistry(workspace.NewFactory(workspace.Deps{
		Identity: identityService,
		Redis:    redisClient,
		Profiles: profiles,
		Content: content.Backend{
			Catalogs:     repository.NewCatalogRepository(dbPool),
			Publications: repository.NewPublicationRepository(dbPool),
			Media:        repository.NewMediaRepository(dbPool),
			Bookmarks:    repository.NewBookmarkRepository(dbPool),
			Storage:      objectStore,
			Orphans:      storage.NewOrphans(redisClient),
		},
		SessionTTL: cfg.Security.JWTRefreshTTL,
		SessionOptions: session.Options{
			AdminRedirect:       cfg.Portal.AdminRedirect,
			DefaultRedirect:     cfg.Portal.DefaultRedirect,
			RecoveryRedirectURL: cfg.Portal.RecoveryRedirectURL,
		},
		ContentOptions: content.Options{MaxUploadBytes: cfg.Storage.MaxUploadBytes},
	}, logger), workspace.Config{
		MaxWorkspaces: cfg.Portal.MaxWorkspaces,
		IdleTTL:       cfg.Portal.WorkspaceTTL,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init workspace registry")
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(promRegistry)

	handlerSet := handlers.NewHandlerSet(
		logger,
		cfg,
		registry,
		identityService,
		[]handlers.HealthCheck{
			{Name: "database", Ping: dbPool.Ping},
			{Name: "cache", Ping: cache.Ping(redisClient)},
		},
		promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(producer, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, registry, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, registry *workspace.Registry, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	scheduler.Stop()
	registry.Close()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}

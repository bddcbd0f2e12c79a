package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/brightwave/portal-api/internal/app"
	"github.com/brightwave/portal-api/internal/auth"
	"github.com/brightwave/portal-api/internal/cache"
	jobmetrics "github.com/brightwave/portal-api/internal/jobs"
	platformcache "github.com/brightwave/portal-api/internal/platform/cache"
	"github.com/brightwave/portal-api/internal/platform/db"
	"github.com/brightwave/portal-api/internal/tenant"
	"github.com/brightwave/portal-api/internal/upstream"
	"github.com/brightwave/portal-api/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := platformcache.New(ctx, cfg.RedisAddr, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	crm := upstream.NewHTTPClient(cfg.UpstreamBaseURL, cfg.UpstreamToken)
	tenants := tenant.NewResolver(crm)
	cacheStore := cache.NewRedisStore(redisClient, logger)
	cacheService := cache.NewService(cacheStore, crm, logger, nil, cache.TTLConfig{
		Projects: cfg.CacheProjectsTTL,
		Invoices: cfg.CacheInvoicesTTL,
		Files:    cfg.CacheFilesTTL,
	})

	warmJob := jobs.NewCacheWarmJob(auth.NewRepository(pool), tenants, cacheService, logger, jobmetrics.NewMetrics(nil))

	warmTask, err := jobs.NewCacheWarmTask(jobs.CacheWarmPayload{
		Resources: []string{cache.ResourceProjects, cache.ResourceInvoices},
	})
	if err != nil {
		logger.Error("build cache warm task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCacheWarm, Handler: warmJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "@every 15m", Task: warmTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-fleet/meridian/internal/app"
	"github.com/meridian-fleet/meridian/internal/auth"
	"github.com/meridian-fleet/meridian/internal/observability"
	"github.com/meridian-fleet/meridian/internal/platform/cache"
	"github.com/meridian-fleet/meridian/internal/platform/db"
	"github.com/meridian-fleet/meridian/internal/policy"
	"github.com/meridian-fleet/meridian/internal/roles"
	"github.com/meridian-fleet/meridian/jobs"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	policyLoader := roles.NewPolicyLoader(pool)
	registry := policy.NewCacheRegistry(policy.CacheConfig{
		Loader:    policyLoader,
		Logger:    logger,
		Recorder:  metrics,
		Narrowing: cfg.DepartmentNarrowing(),
	})

	rolesRepo := roles.NewRepository(pool)
	expiryJob := jobs.NewAssignmentExpiryJob(rolesRepo, registry, metrics, logger)

	authRepo := auth.NewRepository(pool)
	warmupJob := jobs.NewPolicyWarmupJob(authRepo, registry, metrics, logger)

	warmupTask, err := jobs.NewPolicyWarmupTask(jobs.PolicyWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAssignmentExpiry, Handler: expiryJob.Handle},
			{Type: jobs.TaskPolicyWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: jobs.NewAssignmentExpiryTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 5 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

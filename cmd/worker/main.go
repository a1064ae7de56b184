package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/staffora/staffora/internal/app"
	jobmetrics "github.com/staffora/staffora/internal/jobs"
	"github.com/staffora/staffora/internal/platform/cache"
	"github.com/staffora/staffora/internal/platform/db"
	"github.com/staffora/staffora/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)

	rbacService, err := app.NewRBACService(cfg, pool, redisClient, logger, nil)
	if err != nil {
		logger.Error("init rbac", slog.Any("error", err))
		os.Exit(1)
	}
	rolesJob := jobs.NewRolesRefreshJob(rbacService, logger, metrics)
	otpJob := jobs.NewOTPDeliverJob(cfg.SMTPFrom, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRolesRefresh, Handler: rolesJob.Handle},
			{Type: jobs.TaskOTPDeliver, Handler: otpJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RolesRefreshInterval, Task: jobs.NewRolesRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("roles_refresh", cfg.RolesRefreshInterval))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

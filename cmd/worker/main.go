package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aquaflow/aquaflow/internal/app"
	"github.com/aquaflow/aquaflow/internal/approvals"
	jobmetrics "github.com/aquaflow/aquaflow/internal/jobs"
	"github.com/aquaflow/aquaflow/internal/shared"
	"github.com/aquaflow/aquaflow/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	auditLogger := shared.NewAuditLogger(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	approvalRepo := approvals.NewRepository(pool, cfg.LedgerLockTimeout)

	retentionHandler := jobs.NewRetentionCleanupHandler(idempotencyStore, auditLogger, logger, metrics)
	staleHandler := jobs.NewStalePendingScanHandler(approvalRepo, logger, metrics)

	retentionTask, err := jobs.NewRetentionCleanupTask(jobs.RetentionPayload{
		IdempotencyKeepDays: cfg.IdempotencyKeepDays,
		AuditKeepDays:       cfg.AuditKeepDays,
	})
	if err != nil {
		logger.Error("build retention task", slog.Any("error", err))
		os.Exit(1)
	}
	staleTask, err := jobs.NewStalePendingScanTask(jobs.StalePendingPayload{
		MaxAgeHours: cfg.StalePendingHours,
	})
	if err != nil {
		logger.Error("build stale-pending task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRetentionCleanup, Handler: retentionHandler},
			{Type: jobs.TaskStalePendingScan, Handler: staleHandler},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: retentionTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 * * * *", Task: staleTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

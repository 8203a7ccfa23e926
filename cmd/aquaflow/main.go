package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/aquaflow/aquaflow/internal/app"
	"github.com/aquaflow/aquaflow/internal/approvals"
	"github.com/aquaflow/aquaflow/internal/cashbox"
	"github.com/aquaflow/aquaflow/internal/observability"
	"github.com/aquaflow/aquaflow/internal/orders"
	"github.com/aquaflow/aquaflow/internal/platform/cache"
	"github.com/aquaflow/aquaflow/internal/platform/db"
	"github.com/aquaflow/aquaflow/internal/shared"
	"github.com/aquaflow/aquaflow/internal/stock"
	"github.com/aquaflow/aquaflow/internal/tenants"
	"github.com/aquaflow/aquaflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
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
	auditLogger := shared.NewAuditLogger(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	tenantService := tenants.NewService(tenants.NewRepository(pool))
	tenantHandler := tenants.NewHandler(logger, tenantService)

	cashService := cashbox.NewService(cashbox.NewRepository(pool, cfg.LedgerLockTimeout), tenantService, auditLogger)
	cashHandler := cashbox.NewHandler(logger, cashService)

	approvalService := approvals.NewService(approvals.NewRepository(pool, cfg.LedgerLockTimeout), tenantService, auditLogger)
	approvalHandler := approvals.NewHandler(logger, approvalService)

	stockService := stock.NewService(stock.NewRepository(pool, cfg.LedgerLockTimeout), tenantService, auditLogger, idempotencyStore)
	stockHandler := stock.NewHandler(logger, stockService)

	numberingLock := shared.NewMutex(redisClient, shared.OrderNumberingLockKey, cfg.NumberingLockTTL, cfg.NumberingLockWait)
	orderService := orders.NewService(orders.NewRepository(pool), numberingLock, tenantService, auditLogger)
	orderHandler := orders.NewHandler(logger, orderService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Pool:             pool,
		Metrics:          metrics,
		TenantsHandler:   tenantHandler,
		CashboxHandler:   cashHandler,
		ApprovalsHandler: approvalHandler,
		StockHandler:     stockHandler,
		OrdersHandler:    orderHandler,
		JobsHandler:      jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}

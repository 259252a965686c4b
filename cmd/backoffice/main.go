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

	"github.com/meridian-retail/backoffice/internal/app"
	"github.com/meridian-retail/backoffice/internal/auth"
	"github.com/meridian-retail/backoffice/internal/catalog"
	"github.com/meridian-retail/backoffice/internal/discrepancy"
	"github.com/meridian-retail/backoffice/internal/ledger"
	"github.com/meridian-retail/backoffice/internal/orders"
	"github.com/meridian-retail/backoffice/internal/platform/cache"
	"github.com/meridian-retail/backoffice/internal/platform/db"
	"github.com/meridian-retail/backoffice/internal/shared"
	"github.com/meridian-retail/backoffice/jobs"
)

func main() {
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

	audit := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	authService := auth.NewService(auth.NewRepository(pool), redisClient, cfg.SessionTTL)
	authHandler := auth.NewHandler(logger, authService)

	catalogService := catalog.NewService(catalog.NewRepository(pool))
	catalogHandler := catalog.NewHandler(logger, catalogService)

	keeper := ledger.NewKeeper()
	ledgerRepo := ledger.NewRepository(pool)
	snapshots := ledger.NewSnapshotCache(ledgerRepo, redisClient, cfg.SnapshotTTL)
	ledgerService := ledger.NewService(ledgerRepo, keeper, audit, idempotency)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, snapshots)

	discService := discrepancy.NewService(discrepancy.NewRepository(pool), audit)
	discHandler := discrepancy.NewHandler(logger, discService)

	ordersService := orders.NewService(logger, orders.NewRepository(pool), catalogService,
		keeper, discService, audit, idempotency, snapshots)
	ordersHandler := orders.NewHandler(logger, ordersService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = inspector.Close() }()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = jobsClient.Close() }()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterConfig{
		Logger:      logger,
		Config:      cfg,
		AuthService: authService,
		Auth:        authHandler,
		Catalog:     catalogHandler,
		Ledger:      ledgerHandler,
		Orders:      ordersHandler,
		Discrepancy: discHandler,
		Jobs:        jobsHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
}

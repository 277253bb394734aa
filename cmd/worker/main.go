package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockpilot/stockpilot/internal/app"
	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/backup"
	"github.com/stockpilot/stockpilot/internal/inventory"
	jobmetrics "github.com/stockpilot/stockpilot/internal/jobs"
	"github.com/stockpilot/stockpilot/internal/notify"
	"github.com/stockpilot/stockpilot/internal/platform/db"
	"github.com/stockpilot/stockpilot/internal/sales"
	"github.com/stockpilot/stockpilot/jobs"
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

	metrics := jobmetrics.NewMetrics(nil)
	auditService := audit.NewService(audit.NewPgRepository(pool), logger)

	ledger := inventory.NewLedger()
	inventoryService := inventory.NewService(inventory.NewRepository(pool), ledger, auditService, notify.NewAlerter(nil, logger), logger)

	policy := sales.OverpaymentPolicy(cfg.OverpaymentPolicy)
	salesService := sales.NewService(sales.NewPgRepository(pool), ledger, inventoryService, auditService, policy, logger)

	backupService := backup.NewService(backup.NewPgSource(pool), cfg.BackupDir, cfg.BackupRetention, logger)

	backupJob := jobs.NewBackupAutoJob(backupService, logger, metrics)
	overdueJob := jobs.NewOverdueScanJob(salesService, logger, metrics)
	lowStockJob := jobs.NewLowStockScanJob(inventoryService, logger, metrics)
	alertJob := jobs.NewStockAlertJob(logger, metrics)

	now := time.Now().UTC()
	backupTask, err := jobs.NewBackupAutoTask(now)
	if err != nil {
		logger.Error("build backup task", slog.Any("error", err))
		os.Exit(1)
	}
	overdueTask, err := jobs.NewInvoiceOverdueScanTask(now)
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}
	lowStockTask, err := jobs.NewStockLowScanTask(now)
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBackupAuto, Handler: backupJob.Handle},
			{Type: jobs.TaskInvoiceOverdueScan, Handler: overdueJob.Handle},
			{Type: jobs.TaskStockLowScan, Handler: lowStockJob.Handle},
			{Type: jobs.TaskStockAlert, Handler: alertJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BackupCron, Task: backupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "5 0 * * *", Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 */6 * * *", Task: lowStockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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

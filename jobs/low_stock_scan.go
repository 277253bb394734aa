package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stockpilot/stockpilot/internal/inventory"
	jobmetrics "github.com/stockpilot/stockpilot/internal/jobs"
)

// LowStockScanJob reports every active product at or below reorder level.
// The commit-time alerter catches single movements; this sweep catches
// products that started low or whose reorder level was raised.
type LowStockScanJob struct {
	Inventory *inventory.Service
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the low-stock scan handler.
func NewLowStockScanJob(inventorySvc *inventory.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Inventory: inventorySvc, Logger: logger, Metrics: metrics}
}

// Handle processes stock:low_scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStockLowScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	products, err := j.Inventory.LowStockProducts(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("low stock scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, p := range products {
		j.logger().Warn("product below reorder level",
			slog.Int64("product_id", p.ProductID),
			slog.String("sku", p.SKU),
			slog.String("current", p.CurrentStock.String()),
			slog.String("reorder", p.ReorderLevel.String()),
			slog.String("deficit", p.Deficit.String()),
		)
		j.metrics().AddLowStockAlert(p.ProductID)
	}
	j.logger().Info("low stock scan complete", slog.Int("products", len(products)))
	return resultErr
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

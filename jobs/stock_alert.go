package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockpilot/stockpilot/internal/jobs"
)

// StockAlertJob delivers a single low-stock alert raised when a committed
// movement dropped a product to or below its reorder level.
type StockAlertJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStockAlertJob wires dependencies for the alert handler.
func NewStockAlertJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *StockAlertJob {
	return &StockAlertJob{Logger: logger, Metrics: metrics}
}

// Handle processes stock:alert tasks. Delivery is currently the structured
// log stream; TODO: wire an SMTP sink once the shop's mail account exists.
func (j *StockAlertJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StockAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := slog.Default()
	if j != nil && j.Logger != nil {
		logger = j.Logger
	}
	logger.Warn("low stock alert",
		slog.Int64("product_id", payload.ProductID),
		slog.String("current", payload.Current),
		slog.String("reorder", payload.Reorder),
	)
	if j != nil {
		j.Metrics.AddLowStockAlert(payload.ProductID)
	}
	return nil
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockpilot/stockpilot/internal/jobs"
	"github.com/stockpilot/stockpilot/internal/sales"
)

// OverdueScanJob sweeps pending invoices past their due date to Overdue and
// sent quotations past their valid_until to Expired.
type OverdueScanJob struct {
	Sales   *sales.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueScanJob wires dependencies for the overdue sweep handler.
func NewOverdueScanJob(salesSvc *sales.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Sales:   salesSvc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes invoice:overdue_scan tasks.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sales == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskInvoiceOverdueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	asOf := j.now()
	overdue, err := j.Sales.MarkOverdueInvoices(ctx, asOf)
	if err != nil {
		resultErr = err
		j.logger().Error("overdue sweep failed", slog.Any("error", err))
		return resultErr
	}
	expired, err := j.Sales.ExpireQuotations(ctx, asOf)
	if err != nil {
		resultErr = err
		j.logger().Error("quotation expiry sweep failed", slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("overdue sweep complete",
		slog.Int64("invoices_marked", overdue),
		slog.Int64("quotations_expired", expired),
		slog.String("as_of", asOf.Format("2006-01-02")),
	)
	return resultErr
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *OverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

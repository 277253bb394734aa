// Package notify fans committed stock alerts out to the background queue.
package notify

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Enqueuer hands an alert to the background queue. *jobs.Client satisfies it.
type Enqueuer interface {
	EnqueueStockAlert(ctx context.Context, productID int64, current, reorder string) error
}

// Alerter receives low-stock triggers after a movement commits and queues
// delivery. A nil enqueuer degrades to log-only.
type Alerter struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

func NewAlerter(enqueuer Enqueuer, logger *slog.Logger) *Alerter {
	return &Alerter{enqueuer: enqueuer, logger: logger}
}

func (a *Alerter) StockBelowReorder(ctx context.Context, productID int64, current, reorder decimal.Decimal) {
	a.logger.Warn("stock below reorder level",
		slog.Int64("product_id", productID),
		slog.String("current", current.String()),
		slog.String("reorder", reorder.String()),
	)
	if a.enqueuer == nil {
		return
	}
	if err := a.enqueuer.EnqueueStockAlert(ctx, productID, current.String(), reorder.String()); err != nil {
		a.logger.Error("enqueue stock alert failed",
			slog.Int64("product_id", productID),
			slog.Any("error", err),
		)
	}
}

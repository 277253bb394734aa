package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	LowStock(ctx context.Context) ([]LowStockProduct, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, userID int64, action, entity string, entityID int64, details string)
}

// Alerter receives low-stock trigger events after a movement commits.
// Delivery mechanics live elsewhere.
type Alerter interface {
	StockBelowReorder(ctx context.Context, productID int64, current, reorder decimal.Decimal)
}

// Service coordinates standalone ledger operations.
type Service struct {
	repo    RepositoryPort
	ledger  *Ledger
	audit   AuditPort
	alerter Alerter
	logger  *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger *Ledger, audit AuditPort, alerter Alerter, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, audit: audit, alerter: alerter, logger: logger}
}

// Ledger exposes the transaction-scoped engine for services that post
// movements inside their own unit of work.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// ApplyMovement posts a single movement in its own unit of work.
func (s *Service) ApplyMovement(ctx context.Context, input MovementInput) (ApplyResult, error) {
	if input.ProductID == 0 {
		return ApplyResult{}, fmt.Errorf("%w: product required", ErrInvalidQuantity)
	}
	var result ApplyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		var err error
		result, err = s.ledger.Apply(ctx, store, input)
		return err
	})
	if err != nil {
		var missing *StockRecordMissingError
		if errors.As(err, &missing) && s.logger != nil {
			s.logger.Error("stock record missing", slog.Int64("product_id", input.ProductID))
		}
		return ApplyResult{}, err
	}

	s.afterMovement(ctx, result)
	return result, nil
}

// afterMovement records the audit entry and dispatches low-stock alerts for
// a committed movement. Shared with the document services.
func (s *Service) afterMovement(ctx context.Context, result ApplyResult) {
	if s.audit != nil {
		s.audit.Record(ctx, result.Movement.CreatedBy,
			fmt.Sprintf("inventory:%s", result.Movement.Type), "stock_movements", result.Movement.ID,
			fmt.Sprintf("product_id=%d quantity=%s balance=%s",
				result.Movement.ProductID, result.Movement.Quantity.String(), result.NewBalance.String()))
	}
	if result.BelowReorder && s.alerter != nil {
		s.alerter.StockBelowReorder(ctx, result.Movement.ProductID, result.NewBalance, result.ReorderLevel)
	}
}

// NotifyCommitted lets document services report ledger results applied in
// their own transactions once those transactions commit.
func (s *Service) NotifyCommitted(ctx context.Context, results []ApplyResult) {
	for _, r := range results {
		s.afterMovement(ctx, r)
	}
}

// StockMovements lists movement history, most recent first.
func (s *Service) StockMovements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.Movements(ctx, MovementFilter{ProductID: productID, Limit: limit})
}

// LowStockProducts lists active products at or below their reorder level,
// worst deficit first.
func (s *Service) LowStockProducts(ctx context.Context) ([]LowStockProduct, error) {
	return s.repo.LowStock(ctx)
}

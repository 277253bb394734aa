package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TxStore exposes the ledger's persistence operations bound to one open
// transaction. The sales and procurement services obtain a TxStore for
// their own transaction so stock changes commit or roll back together with
// the document that caused them.
type TxStore interface {
	StockLevelForUpdate(ctx context.Context, productID int64) (StockLevel, decimal.Decimal, error)
	UpdateStockLevel(ctx context.Context, productID int64, qty decimal.Decimal) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// Ledger applies quantity changes to stock levels and appends movement
// records. It never owns a transaction; callers run Apply inside their unit
// of work, so either the stock update and the movement record both commit
// or neither does.
type Ledger struct{}

// NewLedger builds a Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Apply validates and executes one movement against the store.
//
// IN adds the quantity, OUT subtracts it and fails with
// InsufficientStockError when the result would be negative, ADJUSTMENT sets
// the absolute level. On failure nothing is written.
func (l *Ledger) Apply(ctx context.Context, store TxStore, input MovementInput) (ApplyResult, error) {
	switch input.Type {
	case MovementIn, MovementOut:
		if !input.Quantity.IsPositive() {
			return ApplyResult{}, ErrInvalidQuantity
		}
	case MovementAdjustment:
		if input.Quantity.IsNegative() {
			return ApplyResult{}, ErrInvalidQuantity
		}
	default:
		return ApplyResult{}, ErrInvalidMovementType
	}

	level, reorderLevel, err := store.StockLevelForUpdate(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, ErrStockLevelNotFound) {
			return ApplyResult{}, &StockRecordMissingError{ProductID: input.ProductID}
		}
		return ApplyResult{}, err
	}

	var newStock decimal.Decimal
	switch input.Type {
	case MovementIn:
		newStock = level.CurrentStock.Add(input.Quantity)
	case MovementOut:
		newStock = level.CurrentStock.Sub(input.Quantity)
		if newStock.IsNegative() {
			return ApplyResult{}, &InsufficientStockError{
				ProductID: input.ProductID,
				Requested: input.Quantity,
				Available: level.CurrentStock,
			}
		}
	case MovementAdjustment:
		newStock = input.Quantity
	}

	if err := store.UpdateStockLevel(ctx, input.ProductID, newStock); err != nil {
		return ApplyResult{}, err
	}

	movement := Movement{
		ProductID:     input.ProductID,
		Type:          input.Type,
		Quantity:      input.Quantity,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Notes:         input.Notes,
		CreatedBy:     input.ActorID,
		CreatedAt:     time.Now().UTC(),
	}
	id, err := store.InsertMovement(ctx, movement)
	if err != nil {
		return ApplyResult{}, err
	}
	movement.ID = id

	return ApplyResult{
		Movement:     movement,
		NewBalance:   newStock,
		ReorderLevel: reorderLevel,
		BelowReorder: newStock.LessThanOrEqual(reorderLevel),
	}, nil
}

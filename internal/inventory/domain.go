package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement; quantity is added.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement; quantity is subtracted.
	MovementOut MovementType = "OUT"
	// MovementAdjustment sets the absolute stock level. An adjustment is a
	// snapshot correction, not a delta.
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// Reference types recorded on movements.
const (
	RefInvoice       = "INVOICE"
	RefPurchaseOrder = "PO"
	RefAdjustment    = "ADJUSTMENT"
)

// StockLevel is the single stock counter per product, mutated only by the
// ledger.
type StockLevel struct {
	ProductID     int64
	CurrentStock  decimal.Decimal
	ReservedStock decimal.Decimal
	LastUpdated   time.Time
}

// Movement is an append-only audit record of one stock change. Quantity is
// stored as an unsigned magnitude; its sign is derived from Type.
type Movement struct {
	ID            int64
	ProductID     int64
	ProductName   string
	Type          MovementType
	Quantity      decimal.Decimal
	ReferenceType string
	ReferenceID   int64
	Notes         string
	CreatedBy     int64
	CreatedAt     time.Time
}

// MovementInput describes a requested stock change.
type MovementInput struct {
	ProductID     int64
	Quantity      decimal.Decimal
	Type          MovementType
	ReferenceType string
	ReferenceID   int64
	Notes         string
	ActorID       int64
}

// ApplyResult reports the outcome of a committed movement.
type ApplyResult struct {
	Movement     Movement
	NewBalance   decimal.Decimal
	ReorderLevel decimal.Decimal
	BelowReorder bool
}

// MovementFilter narrows movement history queries.
type MovementFilter struct {
	ProductID int64
	Limit     int
}

// LowStockProduct is a product at or below its reorder level. Deficit is
// reorder_level - current_stock, so the worst shortfalls sort first.
type LowStockProduct struct {
	ProductID    int64
	SKU          string
	Name         string
	Unit         string
	CurrentStock decimal.Decimal
	ReorderLevel decimal.Decimal
	Deficit      decimal.Decimal
}

// ErrInvalidQuantity indicates a non-positive movement quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidMovementType indicates an unknown movement type.
var ErrInvalidMovementType = errors.New("inventory: unknown movement type")

// ErrStockLevelNotFound is returned by stores when no stock row exists for
// the product. The ledger converts it to a StockRecordMissingError.
var ErrStockLevelNotFound = errors.New("inventory: stock level not found")

// InsufficientStockError rejects an outbound movement that would drive the
// stock negative. It is an expected business condition and carries enough
// context for a precise user message.
type InsufficientStockError struct {
	ProductID int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %d: requested %s, available %s",
		e.ProductID, e.Requested.String(), e.Available.String())
}

// StockRecordMissingError indicates a product exists without its paired
// stock row. Every product gets a stock level at creation, so this is a
// data-integrity defect, not a user error, and is logged as such.
type StockRecordMissingError struct {
	ProductID int64
}

func (e *StockRecordMissingError) Error() string {
	return fmt.Sprintf("inventory: no stock record for product %d", e.ProductID)
}

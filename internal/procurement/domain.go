package procurement

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus lifecycle: Pending -> Received or Pending -> Cancelled.
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusReceived  OrderStatus = "Received"
	StatusCancelled OrderStatus = "Cancelled"
)

// Supplier is a party we buy from.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	GSTIN     string    `json:"gstin,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// SupplierInput is the supplier create payload.
type SupplierInput struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"omitempty,max=20"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"omitempty,max=500"`
	GSTIN   string `json:"gstin" validate:"omitempty,max=20"`
}

// PurchaseOrder shares the sales document header shape. Receiving it posts
// one inbound stock movement per line.
type PurchaseOrder struct {
	ID           int64               `json:"id"`
	OrderNumber  string              `json:"order_number"`
	SupplierID   int64               `json:"supplier_id"`
	SupplierName string              `json:"supplier_name,omitempty"`
	OrderDate    time.Time           `json:"order_date"`
	ExpectedDate *time.Time          `json:"expected_date,omitempty"`
	Subtotal     decimal.Decimal     `json:"subtotal"`
	TaxAmount    decimal.Decimal     `json:"tax_amount"`
	TotalAmount  decimal.Decimal     `json:"total_amount"`
	Status       OrderStatus         `json:"status"`
	Notes        string              `json:"notes,omitempty"`
	CreatedBy    int64               `json:"created_by,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	ReceivedAt   *time.Time          `json:"received_at,omitempty"`
	Items        []PurchaseOrderItem `json:"items,omitempty"`
}

// PurchaseOrderItem is one ordered line.
type PurchaseOrderItem struct {
	ID               int64           `json:"id"`
	PurchaseOrderID  int64           `json:"purchase_order_id"`
	ProductID        int64           `json:"product_id"`
	ProductName      string          `json:"product_name,omitempty"`
	SKU              string          `json:"sku,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
}

// LineInput is one requested order line. Cost prices are per-order facts,
// so unit_price is required here unlike the sales side.
type LineInput struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  string `json:"quantity" validate:"required"`
	UnitPrice string `json:"unit_price" validate:"required"`
}

// CreateOrderInput is the purchase order creation payload.
type CreateOrderInput struct {
	SupplierID   int64       `json:"supplier_id" validate:"required,gt=0"`
	OrderDate    string      `json:"order_date" validate:"omitempty,datetime=2006-01-02"`
	ExpectedDate string      `json:"expected_date" validate:"omitempty,datetime=2006-01-02"`
	Notes        string      `json:"notes" validate:"omitempty,max=2000"`
	Items        []LineInput `json:"items" validate:"required,min=1,dive"`
}

var (
	ErrSupplierNotFound = errors.New("procurement: supplier not found")
	ErrOrderNotFound    = errors.New("procurement: purchase order not found")
	ErrProductNotFound  = errors.New("procurement: product not found")
	ErrNoLineItems      = errors.New("procurement: order needs at least one line item")
	ErrBadDecimal       = errors.New("procurement: malformed decimal value")
	ErrNonPositive      = errors.New("procurement: amount must be positive")
)

// StatusError reports an operation against an order in the wrong state.
type StatusError struct {
	OrderID int64
	Status  OrderStatus
	Op      string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("procurement: cannot %s purchase order %d in status %s", e.Op, e.OrderID, e.Status)
}

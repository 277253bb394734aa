package sales

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus tracks settlement. Overdue is set by the scheduled scan,
// never by the settlement path itself.
type InvoiceStatus string

const (
	StatusPending   InvoiceStatus = "Pending"
	StatusPaid      InvoiceStatus = "Paid"
	StatusOverdue   InvoiceStatus = "Overdue"
	StatusCancelled InvoiceStatus = "Cancelled"
)

// QuotationStatus lifecycle: Draft -> Sent -> {Accepted, Rejected, Expired};
// Accepted -> Converted once an invoice has been minted from it.
type QuotationStatus string

const (
	QuotationDraft     QuotationStatus = "Draft"
	QuotationSent      QuotationStatus = "Sent"
	QuotationAccepted  QuotationStatus = "Accepted"
	QuotationRejected  QuotationStatus = "Rejected"
	QuotationExpired   QuotationStatus = "Expired"
	QuotationConverted QuotationStatus = "Converted"
)

// Customer is a buying party. Soft-deactivated, never deleted.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	GSTIN     string    `json:"gstin,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerInput is the customer create/update payload.
type CustomerInput struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"omitempty,max=20"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"omitempty,max=500"`
	GSTIN   string `json:"gstin" validate:"omitempty,max=20"`
}

// Invoice is a sales document header. Immutable after creation except for
// paid_amount and status.
type Invoice struct {
	ID             int64           `json:"id"`
	InvoiceNumber  string          `json:"invoice_number"`
	CustomerID     int64           `json:"customer_id"`
	CustomerName   string          `json:"customer_name,omitempty"`
	InvoiceDate    time.Time       `json:"invoice_date"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Status         InvoiceStatus   `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	CreatedBy      int64           `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Items          []InvoiceItem   `json:"items,omitempty"`
	Payments       []Payment       `json:"payments,omitempty"`
}

// InvoiceItem is one invoice line. The tax rate is snapshotted from the
// product at creation time, not a live reference.
type InvoiceItem struct {
	ID              int64           `json:"id"`
	InvoiceID       int64           `json:"invoice_id"`
	ProductID       int64           `json:"product_id"`
	ProductName     string          `json:"product_name,omitempty"`
	SKU             string          `json:"sku,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// Payment is an append-only settlement record.
type Payment struct {
	ID              int64           `json:"id"`
	InvoiceID       int64           `json:"invoice_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"`
	PaymentDate     time.Time       `json:"payment_date"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	CreatedBy       int64           `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Quotation mirrors the invoice header shape but carries no payments and no
// stock side effects.
type Quotation struct {
	ID              int64           `json:"id"`
	QuotationNumber string          `json:"quotation_number"`
	CustomerID      int64           `json:"customer_id"`
	CustomerName    string          `json:"customer_name,omitempty"`
	QuotationDate   time.Time       `json:"quotation_date"`
	ValidUntil      *time.Time      `json:"valid_until,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          QuotationStatus `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       int64           `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []InvoiceItem   `json:"items,omitempty"`
}

// LineInput is one requested document line. Amounts arrive as strings so
// clients never round through float JSON numbers. An empty unit_price means
// "use the product's current selling price".
type LineInput struct {
	ProductID       int64  `json:"product_id" validate:"required,gt=0"`
	Quantity        string `json:"quantity" validate:"required"`
	UnitPrice       string `json:"unit_price" validate:"omitempty"`
	DiscountPercent string `json:"discount_percent" validate:"omitempty"`
}

// CreateInvoiceInput is the invoice creation payload.
type CreateInvoiceInput struct {
	CustomerID  int64       `json:"customer_id" validate:"required,gt=0"`
	InvoiceDate string      `json:"invoice_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate     string      `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes       string      `json:"notes" validate:"omitempty,max=2000"`
	Items       []LineInput `json:"items" validate:"required,min=1,dive"`
}

// CreateQuotationInput is the quotation creation payload.
type CreateQuotationInput struct {
	CustomerID    int64       `json:"customer_id" validate:"required,gt=0"`
	QuotationDate string      `json:"quotation_date" validate:"omitempty,datetime=2006-01-02"`
	ValidUntil    string      `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	Notes         string      `json:"notes" validate:"omitempty,max=2000"`
	Items         []LineInput `json:"items" validate:"required,min=1,dive"`
}

// RecordPaymentInput is the payment payload.
type RecordPaymentInput struct {
	Amount          string `json:"amount" validate:"required"`
	Method          string `json:"method" validate:"required,oneof=Cash Card UPI Cheque BankTransfer"`
	PaymentDate     string `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	ReferenceNumber string `json:"reference_number" validate:"omitempty,max=100"`
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status     InvoiceStatus
	CustomerID int64
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// OverpaymentPolicy decides what happens when a payment would push
// paid_amount past total_amount.
type OverpaymentPolicy string

const (
	OverpayReject OverpaymentPolicy = "reject"
	OverpayClamp  OverpaymentPolicy = "clamp"
	OverpayAllow  OverpaymentPolicy = "allow"
)

var (
	ErrCustomerNotFound   = errors.New("sales: customer not found")
	ErrInvoiceNotFound    = errors.New("sales: invoice not found")
	ErrQuotationNotFound  = errors.New("sales: quotation not found")
	ErrProductNotFound    = errors.New("sales: product not found or inactive")
	ErrNoLineItems        = errors.New("sales: document needs at least one line item")
	ErrBadDecimal         = errors.New("sales: malformed decimal value")
	ErrNonPositiveAmount  = errors.New("sales: amount must be positive")
	ErrDiscountOutOfRange = errors.New("sales: discount_percent must be between 0 and 100")
	ErrInvoiceCancelled   = errors.New("sales: invoice is cancelled")
	ErrAlreadySettled     = errors.New("sales: invoice is already fully paid")
)

// OverpaymentError reports a payment rejected by the reject policy.
type OverpaymentError struct {
	InvoiceID   int64
	Amount      decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("sales: payment of %s exceeds outstanding balance %s on invoice %d",
		e.Amount.StringFixed(2), e.Outstanding.StringFixed(2), e.InvoiceID)
}

// StatusTransitionError reports an illegal quotation transition.
type StatusTransitionError struct {
	From QuotationStatus
	To   QuotationStatus
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("sales: cannot move quotation from %s to %s", e.From, e.To)
}

// SettledStatus derives the payment status after a settlement change. It is
// the single source of truth for "Paid iff paid_amount >= total_amount";
// everything short of that keeps the current Pending/Overdue state.
func SettledStatus(current InvoiceStatus, paid, total decimal.Decimal) InvoiceStatus {
	if paid.GreaterThanOrEqual(total) {
		return StatusPaid
	}
	if current == StatusPaid {
		return StatusPending
	}
	return current
}

// quotationTransitions is the closed set of legal moves.
var quotationTransitions = map[QuotationStatus][]QuotationStatus{
	QuotationDraft:    {QuotationSent},
	QuotationSent:     {QuotationAccepted, QuotationRejected, QuotationExpired},
	QuotationAccepted: {QuotationConverted},
}

// CanTransition reports whether a quotation may move between two states.
func CanTransition(from, to QuotationStatus) bool {
	for _, next := range quotationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockpilot/stockpilot/internal/docnum"
	"github.com/stockpilot/stockpilot/internal/inventory"
	"github.com/stockpilot/stockpilot/internal/pricing"
)

// ProductSnapshot is the slice of a product the settlement engine needs at
// document-creation time.
type ProductSnapshot struct {
	ID        int64
	Name      string
	SKU       string
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
	IsActive  bool
}

// TxStore exposes sales persistence bound to one open transaction. Document
// headers, lines, the number series read and the stock movements all ride
// the same transaction so a failed line rolls everything back.
type TxStore interface {
	LastDocumentNumber(ctx context.Context, kind docnum.Kind) (string, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)
	ProductForSale(ctx context.Context, productID int64) (ProductSnapshot, error)

	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error)
	InvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	UpdateInvoiceSettlement(ctx context.Context, id int64, paid decimal.Decimal, status InvoiceStatus) error

	InsertQuotation(ctx context.Context, q Quotation) (int64, error)
	InsertQuotationItem(ctx context.Context, quotationID int64, item InvoiceItem) (int64, error)
	QuotationForUpdate(ctx context.Context, id int64) (Quotation, error)
	UpdateQuotationStatus(ctx context.Context, id int64, status QuotationStatus) error

	// Ledger returns the stock ledger store bound to the same transaction.
	Ledger() inventory.TxStore
}

// Repository is the sales persistence port.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, store TxStore) error) error

	Invoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, int, error)
	Invoice(ctx context.Context, id int64) (Invoice, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
	ExpireQuotations(ctx context.Context, asOf time.Time) (int64, error)
	Quotations(ctx context.Context, limit, offset int) ([]Quotation, error)
	Quotation(ctx context.Context, id int64) (Quotation, error)

	Customers(ctx context.Context, activeOnly bool) ([]Customer, error)
	Customer(ctx context.Context, id int64) (Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (int64, error)
	UpdateCustomer(ctx context.Context, id int64, c Customer) error
	DeactivateCustomer(ctx context.Context, id int64) error
}

// StockNotifier receives committed movement results after the document
// transaction closes, so alerts never fire for rolled-back stock changes.
type StockNotifier interface {
	NotifyCommitted(ctx context.Context, results []inventory.ApplyResult)
}

// AuditPort records sales mutations.
type AuditPort interface {
	Record(ctx context.Context, userID int64, action, entity string, entityID int64, details string)
}

type Service struct {
	repo     Repository
	ledger   *inventory.Ledger
	notifier StockNotifier
	audit    AuditPort
	policy   OverpaymentPolicy
	logger   *slog.Logger
}

func NewService(repo Repository, ledger *inventory.Ledger, notifier StockNotifier, audit AuditPort, policy OverpaymentPolicy, logger *slog.Logger) *Service {
	if policy == "" {
		policy = OverpayReject
	}
	return &Service{repo: repo, ledger: ledger, notifier: notifier, audit: audit, policy: policy, logger: logger}
}

// computedLine is a validated, priced document line ready to persist.
type computedLine struct {
	item InvoiceItem
}

// CreateInvoice mints a number, computes totals and persists the header,
// lines and one outbound stock movement per line in a single transaction.
// Any insufficient stock aborts the whole document.
func (s *Service) CreateInvoice(ctx context.Context, actorID int64, input CreateInvoiceInput) (Invoice, error) {
	if len(input.Items) == 0 {
		return Invoice{}, ErrNoLineItems
	}
	invoiceDate, err := parseDateOr(input.InvoiceDate, time.Now())
	if err != nil {
		return Invoice{}, err
	}
	dueDate, err := parseDatePtr(input.DueDate)
	if err != nil {
		return Invoice{}, err
	}

	var draft invoiceDraft
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		draft, err = s.createInvoiceTx(ctx, store, actorID, input, invoiceDate, dueDate)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}

	s.afterInvoiceCreated(ctx, actorID, draft, len(input.Items))
	return s.repo.Invoice(ctx, draft.invoiceID)
}

// invoiceDraft carries the uncommitted outcome of invoice creation so
// post-commit hooks can run after the transaction closes.
type invoiceDraft struct {
	invoiceID int64
	number    string
	results   []inventory.ApplyResult
}

// createInvoiceTx inserts the header, lines and one OUT movement per line on
// the caller's open transaction.
func (s *Service) createInvoiceTx(ctx context.Context, store TxStore, actorID int64, input CreateInvoiceInput, invoiceDate time.Time, dueDate *time.Time) (invoiceDraft, error) {
	ok, err := store.CustomerExists(ctx, input.CustomerID)
	if err != nil {
		return invoiceDraft{}, err
	}
	if !ok {
		return invoiceDraft{}, ErrCustomerNotFound
	}

	lines, totals, err := s.computeLines(ctx, store, input.Items)
	if err != nil {
		return invoiceDraft{}, err
	}

	last, err := store.LastDocumentNumber(ctx, docnum.KindInvoice)
	if err != nil {
		return invoiceDraft{}, err
	}
	number, err := docnum.Next(docnum.KindInvoice, last)
	if err != nil {
		return invoiceDraft{}, err
	}

	invoiceID, err := store.InsertInvoice(ctx, Invoice{
		InvoiceNumber: number,
		CustomerID:    input.CustomerID,
		InvoiceDate:   invoiceDate,
		DueDate:       dueDate,
		Subtotal:      pricing.Round2(totals.Subtotal),
		TaxAmount:     pricing.Round2(totals.Tax),
		TotalAmount:   pricing.Round2(totals.Total),
		PaidAmount:    decimal.Zero,
		Status:        StatusPending,
		Notes:         input.Notes,
		CreatedBy:     actorID,
	})
	if err != nil {
		return invoiceDraft{}, err
	}

	draft := invoiceDraft{invoiceID: invoiceID, number: number}
	for _, line := range lines {
		line.item.InvoiceID = invoiceID
		if _, err := store.InsertInvoiceItem(ctx, line.item); err != nil {
			return invoiceDraft{}, err
		}
		result, err := s.ledger.Apply(ctx, store.Ledger(), inventory.MovementInput{
			ProductID:     line.item.ProductID,
			Quantity:      line.item.Quantity,
			Type:          inventory.MovementOut,
			ReferenceType: inventory.RefInvoice,
			ReferenceID:   invoiceID,
			Notes:         "Sale " + number,
			ActorID:       actorID,
		})
		if err != nil {
			return invoiceDraft{}, err
		}
		draft.results = append(draft.results, result)
	}
	return draft, nil
}

func (s *Service) afterInvoiceCreated(ctx context.Context, actorID int64, draft invoiceDraft, lineCount int) {
	if s.notifier != nil {
		s.notifier.NotifyCommitted(ctx, draft.results)
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "CREATE", "sales_invoices", draft.invoiceID, "number="+draft.number)
	}
	s.logger.Info("invoice created", "invoice_id", draft.invoiceID, "number", draft.number, "lines", lineCount)
}

// RecordPayment appends a payment and recomputes the invoice's paid amount
// and status atomically. The overpayment policy decides what happens when
// the payment exceeds the outstanding balance.
func (s *Service) RecordPayment(ctx context.Context, actorID, invoiceID int64, input RecordPaymentInput) (Payment, Invoice, error) {
	amount, err := parsePositive(input.Amount)
	if err != nil {
		return Payment{}, Invoice{}, err
	}
	paymentDate, err := parseDateOr(input.PaymentDate, time.Now())
	if err != nil {
		return Payment{}, Invoice{}, err
	}

	var payment Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		inv, err := store.InvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return ErrInvoiceCancelled
		}

		outstanding := inv.TotalAmount.Sub(inv.PaidAmount)
		if amount.GreaterThan(outstanding) {
			switch s.policy {
			case OverpayReject:
				return &OverpaymentError{InvoiceID: invoiceID, Amount: amount, Outstanding: outstanding}
			case OverpayClamp:
				if !outstanding.IsPositive() {
					return ErrAlreadySettled
				}
				amount = outstanding
			case OverpayAllow:
				// Customer credit; paid_amount may exceed total_amount.
			}
		}

		reference := input.ReferenceNumber
		if reference == "" {
			// Cash receipts rarely carry a bank reference; stamp one so
			// every payment row stays individually traceable.
			reference = "RCPT-" + uuid.NewString()
		}
		payment = Payment{
			InvoiceID:       invoiceID,
			Amount:          pricing.Round2(amount),
			Method:          input.Method,
			PaymentDate:     paymentDate,
			ReferenceNumber: reference,
			CreatedBy:       actorID,
			CreatedAt:       time.Now().UTC(),
		}
		payment.ID, err = store.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}

		newPaid := inv.PaidAmount.Add(payment.Amount)
		return store.UpdateInvoiceSettlement(ctx, invoiceID, newPaid, SettledStatus(inv.Status, newPaid, inv.TotalAmount))
	})
	if err != nil {
		return Payment{}, Invoice{}, err
	}

	if s.audit != nil {
		s.audit.Record(ctx, actorID, "CREATE", "payments", payment.ID,
			fmt.Sprintf("invoice_id=%d amount=%s", invoiceID, payment.Amount.StringFixed(2)))
	}
	s.logger.Info("payment recorded", "invoice_id", invoiceID, "amount", payment.Amount.StringFixed(2))

	inv, err := s.repo.Invoice(ctx, invoiceID)
	if err != nil {
		return Payment{}, Invoice{}, err
	}
	return payment, inv, nil
}

func (s *Service) Invoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.Invoices(ctx, filter)
}

func (s *Service) Invoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.Invoice(ctx, id)
}

// MarkOverdueInvoices flips unsettled invoices whose due date has passed to
// Overdue. Returns how many invoices changed.
func (s *Service) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int64, error) {
	n, err := s.repo.MarkOverdue(ctx, asOf)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("invoices marked overdue", "count", n, "as_of", asOf.Format("2006-01-02"))
	}
	return n, nil
}

// ExpireQuotations flips sent quotations whose valid_until has passed to
// Expired. Returns how many quotations changed.
func (s *Service) ExpireQuotations(ctx context.Context, asOf time.Time) (int64, error) {
	n, err := s.repo.ExpireQuotations(ctx, asOf)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("quotations expired", "count", n, "as_of", asOf.Format("2006-01-02"))
	}
	return n, nil
}

// CreateQuotation persists a priced quotation. No stock side effects.
func (s *Service) CreateQuotation(ctx context.Context, actorID int64, input CreateQuotationInput) (Quotation, error) {
	if len(input.Items) == 0 {
		return Quotation{}, ErrNoLineItems
	}
	quotationDate, err := parseDateOr(input.QuotationDate, time.Now())
	if err != nil {
		return Quotation{}, err
	}
	validUntil, err := parseDatePtr(input.ValidUntil)
	if err != nil {
		return Quotation{}, err
	}

	var (
		quotationID int64
		number      string
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		ok, err := store.CustomerExists(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCustomerNotFound
		}

		lines, totals, err := s.computeLines(ctx, store, input.Items)
		if err != nil {
			return err
		}

		last, err := store.LastDocumentNumber(ctx, docnum.KindQuotation)
		if err != nil {
			return err
		}
		number, err = docnum.Next(docnum.KindQuotation, last)
		if err != nil {
			return err
		}

		quotationID, err = store.InsertQuotation(ctx, Quotation{
			QuotationNumber: number,
			CustomerID:      input.CustomerID,
			QuotationDate:   quotationDate,
			ValidUntil:      validUntil,
			Subtotal:        pricing.Round2(totals.Subtotal),
			TaxAmount:       pricing.Round2(totals.Tax),
			TotalAmount:     pricing.Round2(totals.Total),
			Status:          QuotationDraft,
			Notes:           input.Notes,
			CreatedBy:       actorID,
		})
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := store.InsertQuotationItem(ctx, quotationID, line.item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Quotation{}, err
	}

	if s.audit != nil {
		s.audit.Record(ctx, actorID, "CREATE", "quotations", quotationID, "number="+number)
	}
	return s.repo.Quotation(ctx, quotationID)
}

// TransitionQuotation moves a quotation along its lifecycle. Conversion is
// not a transition callers may request directly; use ConvertQuotation.
func (s *Service) TransitionQuotation(ctx context.Context, actorID, id int64, to QuotationStatus) (Quotation, error) {
	if to == QuotationConverted {
		return Quotation{}, &StatusTransitionError{From: "", To: to}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		q, err := store.QuotationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(q.Status, to) {
			return &StatusTransitionError{From: q.Status, To: to}
		}
		return store.UpdateQuotationStatus(ctx, id, to)
	})
	if err != nil {
		return Quotation{}, err
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "UPDATE", "quotations", id, "status="+string(to))
	}
	return s.repo.Quotation(ctx, id)
}

// ConvertQuotation creates an invoice from an accepted quotation's lines and
// marks the quotation Converted. The invoice creation is the same engine as
// CreateInvoice, so stock checks and atomicity apply unchanged.
func (s *Service) ConvertQuotation(ctx context.Context, actorID, id int64) (Invoice, error) {
	q, err := s.repo.Quotation(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if len(q.Items) == 0 {
		return Invoice{}, ErrNoLineItems
	}

	items := make([]LineInput, 0, len(q.Items))
	for _, item := range q.Items {
		items = append(items, LineInput{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity.String(),
			UnitPrice:       item.UnitPrice.String(),
			DiscountPercent: item.DiscountPercent.String(),
		})
	}

	// The status check, the invoice and the Converted flip share one
	// transaction: a concurrent convert blocks on the row lock and then
	// fails the status check, so the quotation issues at most one invoice.
	var draft invoiceDraft
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		current, err := store.QuotationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != QuotationAccepted {
			return &StatusTransitionError{From: current.Status, To: QuotationConverted}
		}
		draft, err = s.createInvoiceTx(ctx, store, actorID, CreateInvoiceInput{
			CustomerID: q.CustomerID,
			Notes:      "Converted from " + q.QuotationNumber,
			Items:      items,
		}, time.Now(), nil)
		if err != nil {
			return err
		}
		return store.UpdateQuotationStatus(ctx, id, QuotationConverted)
	})
	if err != nil {
		return Invoice{}, err
	}

	s.afterInvoiceCreated(ctx, actorID, draft, len(items))
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "UPDATE", "quotations", id, "status="+string(QuotationConverted))
	}
	return s.repo.Invoice(ctx, draft.invoiceID)
}

func (s *Service) Quotations(ctx context.Context, limit, offset int) ([]Quotation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.Quotations(ctx, limit, offset)
}

func (s *Service) Quotation(ctx context.Context, id int64) (Quotation, error) {
	return s.repo.Quotation(ctx, id)
}

func (s *Service) Customers(ctx context.Context, activeOnly bool) ([]Customer, error) {
	return s.repo.Customers(ctx, activeOnly)
}

func (s *Service) Customer(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Customer(ctx, id)
}

func (s *Service) CreateCustomer(ctx context.Context, actorID int64, input CustomerInput) (Customer, error) {
	c := Customer{
		Name:     strings.TrimSpace(input.Name),
		Phone:    input.Phone,
		Email:    input.Email,
		Address:  input.Address,
		GSTIN:    input.GSTIN,
		IsActive: true,
	}
	id, err := s.repo.CreateCustomer(ctx, c)
	if err != nil {
		return Customer{}, err
	}
	c.ID = id
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "CREATE", "customers", id, "name="+c.Name)
	}
	return c, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, actorID, id int64, input CustomerInput) (Customer, error) {
	c := Customer{
		Name:    strings.TrimSpace(input.Name),
		Phone:   input.Phone,
		Email:   input.Email,
		Address: input.Address,
		GSTIN:   input.GSTIN,
	}
	if err := s.repo.UpdateCustomer(ctx, id, c); err != nil {
		return Customer{}, err
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "UPDATE", "customers", id, "")
	}
	return s.repo.Customer(ctx, id)
}

func (s *Service) DeactivateCustomer(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeactivateCustomer(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "DEACTIVATE", "customers", id, "")
	}
	return nil
}

// computeLines validates and prices the requested lines against live
// product data. Tax rates are snapshotted here.
func (s *Service) computeLines(ctx context.Context, store TxStore, inputs []LineInput) ([]computedLine, pricing.DocumentAmounts, error) {
	lines := make([]computedLine, 0, len(inputs))
	amounts := make([]pricing.LineAmounts, 0, len(inputs))
	for i, in := range inputs {
		qty, err := parsePositive(in.Quantity)
		if err != nil {
			return nil, pricing.DocumentAmounts{}, fmt.Errorf("line %d quantity: %w", i+1, err)
		}
		discount, err := parseNonNegative(in.DiscountPercent)
		if err != nil {
			return nil, pricing.DocumentAmounts{}, fmt.Errorf("line %d discount: %w", i+1, err)
		}
		if discount.GreaterThan(decimal.NewFromInt(100)) {
			return nil, pricing.DocumentAmounts{}, ErrDiscountOutOfRange
		}

		product, err := store.ProductForSale(ctx, in.ProductID)
		if err != nil {
			return nil, pricing.DocumentAmounts{}, err
		}
		if !product.IsActive {
			return nil, pricing.DocumentAmounts{}, fmt.Errorf("%w: product %d", ErrProductNotFound, in.ProductID)
		}

		unitPrice := product.UnitPrice
		if strings.TrimSpace(in.UnitPrice) != "" {
			unitPrice, err = parseNonNegative(in.UnitPrice)
			if err != nil {
				return nil, pricing.DocumentAmounts{}, fmt.Errorf("line %d unit_price: %w", i+1, err)
			}
		}

		la := pricing.ComputeLine(qty, unitPrice, discount, product.TaxRate)
		lines = append(lines, computedLine{
			item: InvoiceItem{
				ProductID:       product.ID,
				ProductName:     product.Name,
				SKU:             product.SKU,
				Quantity:        qty,
				UnitPrice:       unitPrice,
				DiscountPercent: discount,
				TaxRate:         product.TaxRate,
				TotalPrice:      pricing.Round2(la.Total),
			},
		})
		amounts = append(amounts, la)
	}
	return lines, pricing.ComputeDocument(amounts), nil
}

func parsePositive(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ErrBadDecimal
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	return d, nil
}

func parseNonNegative(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrBadDecimal
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	return d, nil
}

func parseDateOr(raw string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("sales: malformed date %q", raw)
	}
	return t, nil
}

func parseDatePtr(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("sales: malformed date %q", raw)
	}
	return &t, nil
}

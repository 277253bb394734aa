package sales

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/docnum"
	"github.com/stockpilot/stockpilot/internal/inventory"
)

// memoryRepo backs the service with in-memory state and emulates
// transaction rollback by snapshotting before each WithTx call.
type memoryRepo struct {
	customers      map[int64]Customer
	products       map[int64]ProductSnapshot
	stock          map[int64]decimal.Decimal
	reorder        map[int64]decimal.Decimal
	invoices       map[int64]Invoice
	invoiceItems   map[int64][]InvoiceItem
	payments       map[int64][]Payment
	quotations     map[int64]Quotation
	quotationItems map[int64][]InvoiceItem
	movements      []inventory.Movement
	nextID         int64

	quotationStatusErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		customers:      map[int64]Customer{},
		products:       map[int64]ProductSnapshot{},
		stock:          map[int64]decimal.Decimal{},
		reorder:        map[int64]decimal.Decimal{},
		invoices:       map[int64]Invoice{},
		invoiceItems:   map[int64][]InvoiceItem{},
		payments:       map[int64][]Payment{},
		quotations:     map[int64]Quotation{},
		quotationItems: map[int64][]InvoiceItem{},
		nextID:         1,
	}
}

func (m *memoryRepo) snapshot() *memoryRepo {
	c := newMemoryRepo()
	c.nextID = m.nextID
	c.quotationStatusErr = m.quotationStatusErr
	for k, v := range m.customers {
		c.customers[k] = v
	}
	for k, v := range m.products {
		c.products[k] = v
	}
	for k, v := range m.stock {
		c.stock[k] = v
	}
	for k, v := range m.reorder {
		c.reorder[k] = v
	}
	for k, v := range m.invoices {
		c.invoices[k] = v
	}
	for k, v := range m.invoiceItems {
		c.invoiceItems[k] = append([]InvoiceItem(nil), v...)
	}
	for k, v := range m.payments {
		c.payments[k] = append([]Payment(nil), v...)
	}
	for k, v := range m.quotations {
		c.quotations[k] = v
	}
	for k, v := range m.quotationItems {
		c.quotationItems[k] = append([]InvoiceItem(nil), v...)
	}
	c.movements = append([]inventory.Movement(nil), m.movements...)
	return c
}

func (m *memoryRepo) restore(s *memoryRepo) {
	*m = *s
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	before := m.snapshot()
	if err := fn(ctx, &memoryTx{m: m}); err != nil {
		m.restore(before)
		return err
	}
	return nil
}

type memoryTx struct {
	m *memoryRepo
}

func (t *memoryTx) LastDocumentNumber(_ context.Context, kind docnum.Kind) (string, error) {
	last := ""
	lastID := int64(0)
	switch kind {
	case docnum.KindInvoice:
		for _, inv := range t.m.invoices {
			if inv.ID > lastID {
				lastID, last = inv.ID, inv.InvoiceNumber
			}
		}
	case docnum.KindQuotation:
		for _, q := range t.m.quotations {
			if q.ID > lastID {
				lastID, last = q.ID, q.QuotationNumber
			}
		}
	}
	return last, nil
}

func (t *memoryTx) CustomerExists(_ context.Context, id int64) (bool, error) {
	c, ok := t.m.customers[id]
	return ok && c.IsActive, nil
}

func (t *memoryTx) ProductForSale(_ context.Context, productID int64) (ProductSnapshot, error) {
	p, ok := t.m.products[productID]
	if !ok {
		return ProductSnapshot{}, ErrProductNotFound
	}
	return p, nil
}

func (t *memoryTx) InsertInvoice(_ context.Context, inv Invoice) (int64, error) {
	inv.ID = t.m.nextID
	t.m.nextID++
	inv.CreatedAt = time.Now()
	t.m.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (t *memoryTx) InsertInvoiceItem(_ context.Context, item InvoiceItem) (int64, error) {
	item.ID = t.m.nextID
	t.m.nextID++
	t.m.invoiceItems[item.InvoiceID] = append(t.m.invoiceItems[item.InvoiceID], item)
	return item.ID, nil
}

func (t *memoryTx) InvoiceForUpdate(_ context.Context, id int64) (Invoice, error) {
	inv, ok := t.m.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (t *memoryTx) InsertPayment(_ context.Context, p Payment) (int64, error) {
	p.ID = t.m.nextID
	t.m.nextID++
	t.m.payments[p.InvoiceID] = append(t.m.payments[p.InvoiceID], p)
	return p.ID, nil
}

func (t *memoryTx) UpdateInvoiceSettlement(_ context.Context, id int64, paid decimal.Decimal, status InvoiceStatus) error {
	inv, ok := t.m.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.PaidAmount = paid
	inv.Status = status
	t.m.invoices[id] = inv
	return nil
}

func (t *memoryTx) InsertQuotation(_ context.Context, q Quotation) (int64, error) {
	q.ID = t.m.nextID
	t.m.nextID++
	q.CreatedAt = time.Now()
	t.m.quotations[q.ID] = q
	return q.ID, nil
}

func (t *memoryTx) InsertQuotationItem(_ context.Context, quotationID int64, item InvoiceItem) (int64, error) {
	item.ID = t.m.nextID
	t.m.nextID++
	item.InvoiceID = quotationID
	t.m.quotationItems[quotationID] = append(t.m.quotationItems[quotationID], item)
	return item.ID, nil
}

func (t *memoryTx) QuotationForUpdate(_ context.Context, id int64) (Quotation, error) {
	q, ok := t.m.quotations[id]
	if !ok {
		return Quotation{}, ErrQuotationNotFound
	}
	return q, nil
}

func (t *memoryTx) UpdateQuotationStatus(_ context.Context, id int64, status QuotationStatus) error {
	if t.m.quotationStatusErr != nil {
		return t.m.quotationStatusErr
	}
	q, ok := t.m.quotations[id]
	if !ok {
		return ErrQuotationNotFound
	}
	q.Status = status
	t.m.quotations[id] = q
	return nil
}

func (t *memoryTx) Ledger() inventory.TxStore {
	return &memoryLedger{m: t.m}
}

type memoryLedger struct {
	m *memoryRepo
}

func (l *memoryLedger) StockLevelForUpdate(_ context.Context, productID int64) (inventory.StockLevel, decimal.Decimal, error) {
	stock, ok := l.m.stock[productID]
	if !ok {
		return inventory.StockLevel{}, decimal.Zero, inventory.ErrStockLevelNotFound
	}
	return inventory.StockLevel{ProductID: productID, CurrentStock: stock}, l.m.reorder[productID], nil
}

func (l *memoryLedger) UpdateStockLevel(_ context.Context, productID int64, qty decimal.Decimal) error {
	l.m.stock[productID] = qty
	return nil
}

func (l *memoryLedger) InsertMovement(_ context.Context, m inventory.Movement) (int64, error) {
	m.ID = l.m.nextID
	l.m.nextID++
	l.m.movements = append(l.m.movements, m)
	return m.ID, nil
}

func (m *memoryRepo) Invoices(_ context.Context, filter InvoiceFilter) ([]Invoice, int, error) {
	out := []Invoice{}
	for _, inv := range m.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if filter.CustomerID > 0 && inv.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, inv)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Invoice(_ context.Context, id int64) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	inv.CustomerName = m.customers[inv.CustomerID].Name
	inv.Items = append([]InvoiceItem(nil), m.invoiceItems[id]...)
	inv.Payments = append([]Payment(nil), m.payments[id]...)
	return inv, nil
}

func (m *memoryRepo) MarkOverdue(_ context.Context, asOf time.Time) (int64, error) {
	var n int64
	for id, inv := range m.invoices {
		if inv.Status == StatusPending && inv.DueDate != nil && inv.DueDate.Before(asOf) {
			inv.Status = StatusOverdue
			m.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) ExpireQuotations(_ context.Context, asOf time.Time) (int64, error) {
	var n int64
	for id, q := range m.quotations {
		if q.Status == QuotationSent && q.ValidUntil != nil && q.ValidUntil.Before(asOf) {
			q.Status = QuotationExpired
			m.quotations[id] = q
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) Quotations(_ context.Context, _, _ int) ([]Quotation, error) {
	out := []Quotation{}
	for _, q := range m.quotations {
		out = append(out, q)
	}
	return out, nil
}

func (m *memoryRepo) Quotation(_ context.Context, id int64) (Quotation, error) {
	q, ok := m.quotations[id]
	if !ok {
		return Quotation{}, ErrQuotationNotFound
	}
	q.CustomerName = m.customers[q.CustomerID].Name
	q.Items = append([]InvoiceItem(nil), m.quotationItems[id]...)
	return q, nil
}

func (m *memoryRepo) Customers(_ context.Context, activeOnly bool) ([]Customer, error) {
	out := []Customer{}
	for _, c := range m.customers {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryRepo) Customer(_ context.Context, id int64) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	return c, nil
}

func (m *memoryRepo) CreateCustomer(_ context.Context, c Customer) (int64, error) {
	c.ID = m.nextID
	m.nextID++
	c.CreatedAt = time.Now()
	m.customers[c.ID] = c
	return c.ID, nil
}

func (m *memoryRepo) UpdateCustomer(_ context.Context, id int64, c Customer) error {
	existing, ok := m.customers[id]
	if !ok {
		return ErrCustomerNotFound
	}
	c.ID = id
	c.IsActive = existing.IsActive
	m.customers[id] = c
	return nil
}

func (m *memoryRepo) DeactivateCustomer(_ context.Context, id int64) error {
	c, ok := m.customers[id]
	if !ok {
		return ErrCustomerNotFound
	}
	c.IsActive = false
	m.customers[id] = c
	return nil
}

type recordingNotifier struct {
	calls [][]inventory.ApplyResult
}

func (r *recordingNotifier) NotifyCommitted(_ context.Context, results []inventory.ApplyResult) {
	r.calls = append(r.calls, append([]inventory.ApplyResult(nil), results...))
}

func newTestService(policy OverpaymentPolicy) (*Service, *memoryRepo, *recordingNotifier) {
	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, inventory.NewLedger(), notifier, nil, policy, logger)
	return svc, repo, notifier
}

func seedShowroom(repo *memoryRepo) {
	repo.customers[1] = Customer{ID: 1, Name: "Sharma Interiors", IsActive: true}
	repo.products[1] = ProductSnapshot{ID: 1, Name: "Marine Plywood 18mm", SKU: "PLY001",
		UnitPrice: decimal.NewFromInt(2500), TaxRate: decimal.NewFromInt(18), IsActive: true}
	repo.products[2] = ProductSnapshot{ID: 2, Name: "Sunmica Laminate - Walnut", SKU: "LAM001",
		UnitPrice: decimal.NewFromInt(850), TaxRate: decimal.NewFromInt(18), IsActive: true}
	repo.stock[1] = decimal.NewFromInt(40)
	repo.stock[2] = decimal.NewFromInt(200)
	repo.reorder[1] = decimal.NewFromInt(10)
	repo.reorder[2] = decimal.NewFromInt(25)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCreateInvoiceComputesTotalsAndMovesStock(t *testing.T) {
	svc, repo, notifier := newTestService(OverpayReject)
	seedShowroom(repo)

	inv, err := svc.CreateInvoice(context.Background(), 9, CreateInvoiceInput{
		CustomerID: 1,
		Items: []LineInput{
			{ProductID: 1, Quantity: "10", DiscountPercent: "5"},
			{ProductID: 2, Quantity: "5"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "INV0001", inv.InvoiceNumber)
	assert.Equal(t, StatusPending, inv.Status)
	assert.True(t, inv.Subtotal.Equal(dec("28000.00")), "subtotal %s", inv.Subtotal)
	assert.True(t, inv.TaxAmount.Equal(dec("5040.00")), "tax %s", inv.TaxAmount)
	assert.True(t, inv.TotalAmount.Equal(dec("33040.00")), "total %s", inv.TotalAmount)
	assert.True(t, inv.PaidAmount.IsZero())
	assert.True(t, inv.TotalAmount.Equal(inv.Subtotal.Add(inv.TaxAmount)))

	require.Len(t, inv.Items, 2)
	assert.True(t, inv.Items[0].TotalPrice.Equal(dec("28025.00")), "line1 %s", inv.Items[0].TotalPrice)
	assert.True(t, inv.Items[1].TotalPrice.Equal(dec("5015.00")), "line2 %s", inv.Items[1].TotalPrice)
	assert.True(t, inv.Items[0].TaxRate.Equal(dec("18")), "tax rate snapshotted")

	assert.True(t, repo.stock[1].Equal(dec("30")))
	assert.True(t, repo.stock[2].Equal(dec("195")))
	require.Len(t, repo.movements, 2)
	for _, m := range repo.movements {
		assert.Equal(t, inventory.MovementOut, m.Type)
		assert.Equal(t, inventory.RefInvoice, m.ReferenceType)
		assert.Equal(t, inv.ID, m.ReferenceID)
		assert.Equal(t, int64(9), m.CreatedBy)
	}

	require.Len(t, notifier.calls, 1)
	assert.Len(t, notifier.calls[0], 2)
}

func TestCreateInvoiceInsufficientStockRollsBackEverything(t *testing.T) {
	svc, repo, notifier := newTestService(OverpayReject)
	seedShowroom(repo)

	_, err := svc.CreateInvoice(context.Background(), 9, CreateInvoiceInput{
		CustomerID: 1,
		Items: []LineInput{
			{ProductID: 1, Quantity: "10"},
			{ProductID: 2, Quantity: "500"},
		},
	})
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(2), insufficient.ProductID)

	// Nothing may survive: no header, no items, no movements, no stock
	// change, and the number series untouched.
	assert.Empty(t, repo.invoices)
	assert.Empty(t, repo.invoiceItems)
	assert.Empty(t, repo.movements)
	assert.True(t, repo.stock[1].Equal(dec("40")), "first line's deduction rolled back")
	assert.True(t, repo.stock[2].Equal(dec("200")))
	assert.Empty(t, notifier.calls, "no alerts for rolled-back movements")

	inv, err := svc.CreateInvoice(context.Background(), 9, CreateInvoiceInput{
		CustomerID: 1,
		Items:      []LineInput{{ProductID: 1, Quantity: "1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV0001", inv.InvoiceNumber, "failed attempt must not consume a number")
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)

	_, err := svc.CreateInvoice(context.Background(), 9, CreateInvoiceInput{CustomerID: 1})
	assert.ErrorIs(t, err, ErrNoLineItems)

	_, err = svc.CreateInvoice(context.Background(), 9, CreateInvoiceInput{
		CustomerID: 42,
		Items:      []LineInput{{ProductID: 1, Quantity: "1"}},
	})
	assert.ErrorIs(t, err, ErrCustomerNotFound)

	_, err = svc.CreateInvoice(context.Background(), 9, CreateInvoiceInput{
		CustomerID: 1,
		Items:      []LineInput{{ProductID: 99, Quantity: "1"}},
	})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.CreateInvoice(context.Background(), 9, CreateInvoiceInput{
		CustomerID: 1,
		Items:      []LineInput{{ProductID: 1, Quantity: "-3"}},
	})
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	_, err = svc.CreateInvoice(context.Background(), 9, CreateInvoiceInput{
		CustomerID: 1,
		Items:      []LineInput{{ProductID: 1, Quantity: "1", DiscountPercent: "120"}},
	})
	assert.ErrorIs(t, err, ErrDiscountOutOfRange)

	repo.products[1] = ProductSnapshot{ID: 1, Name: "Retired", SKU: "PLY001",
		UnitPrice: decimal.NewFromInt(2500), TaxRate: decimal.NewFromInt(18), IsActive: false}
	_, err = svc.CreateInvoice(context.Background(), 9, CreateInvoiceInput{
		CustomerID: 1,
		Items:      []LineInput{{ProductID: 1, Quantity: "1"}},
	})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestInvoiceNumbersAreSequential(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)

	for i, want := range []string{"INV0001", "INV0002", "INV0003"} {
		inv, err := svc.CreateInvoice(context.Background(), 9, CreateInvoiceInput{
			CustomerID: 1,
			Items:      []LineInput{{ProductID: 2, Quantity: "1"}},
		})
		require.NoError(t, err, "invoice %d", i+1)
		assert.Equal(t, want, inv.InvoiceNumber)
	}
}

func createInvoice(t *testing.T, svc *Service) Invoice {
	t.Helper()
	inv, err := svc.CreateInvoice(context.Background(), 9, CreateInvoiceInput{
		CustomerID: 1,
		Items: []LineInput{
			{ProductID: 1, Quantity: "10", DiscountPercent: "5"},
			{ProductID: 2, Quantity: "5"},
		},
	})
	require.NoError(t, err)
	return inv
}

func TestRecordPaymentPartialThenSettled(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)
	inv := createInvoice(t, svc)

	cash, updated, err := svc.RecordPayment(context.Background(), 9, inv.ID, RecordPaymentInput{
		Amount: "10000", Method: "Cash",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status, "partial payment stays Pending")
	assert.True(t, updated.PaidAmount.Equal(dec("10000.00")))
	assert.True(t, strings.HasPrefix(cash.ReferenceNumber, "RCPT-"), "blank reference gets a generated receipt number")

	payment, updated, err := svc.RecordPayment(context.Background(), 9, inv.ID, RecordPaymentInput{
		Amount: "23040", Method: "UPI", ReferenceNumber: "UPI-778",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, updated.Status, "Paid exactly when paid_amount >= total_amount")
	assert.True(t, updated.PaidAmount.Equal(updated.TotalAmount))
	assert.True(t, payment.Amount.Equal(dec("23040.00")))
	assert.Len(t, updated.Payments, 2, "payments are append-only")
}

func TestRecordPaymentOverpaymentRejected(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)
	inv := createInvoice(t, svc)

	_, _, err := svc.RecordPayment(context.Background(), 9, inv.ID, RecordPaymentInput{
		Amount: "50000", Method: "Cash",
	})
	var overpay *OverpaymentError
	require.ErrorAs(t, err, &overpay)
	assert.True(t, overpay.Outstanding.Equal(dec("33040.00")))

	after, err := svc.Invoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, after.PaidAmount.IsZero(), "rejected payment writes nothing")
	assert.Empty(t, after.Payments)
}

func TestRecordPaymentOverpaymentClamped(t *testing.T) {
	svc, repo, _ := newTestService(OverpayClamp)
	seedShowroom(repo)
	inv := createInvoice(t, svc)

	payment, updated, err := svc.RecordPayment(context.Background(), 9, inv.ID, RecordPaymentInput{
		Amount: "50000", Method: "Cash",
	})
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(dec("33040.00")), "clamped to the outstanding balance")
	assert.Equal(t, StatusPaid, updated.Status)

	_, _, err = svc.RecordPayment(context.Background(), 9, inv.ID, RecordPaymentInput{
		Amount: "1", Method: "Cash",
	})
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestRecordPaymentOverpaymentAllowed(t *testing.T) {
	svc, repo, _ := newTestService(OverpayAllow)
	seedShowroom(repo)
	inv := createInvoice(t, svc)

	_, updated, err := svc.RecordPayment(context.Background(), 9, inv.ID, RecordPaymentInput{
		Amount: "40000", Method: "BankTransfer",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, updated.Status)
	assert.True(t, updated.PaidAmount.Equal(dec("40000.00")), "credit balance tracked as overpaid amount")
}

func TestRecordPaymentValidation(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)
	inv := createInvoice(t, svc)

	_, _, err := svc.RecordPayment(context.Background(), 9, inv.ID, RecordPaymentInput{Amount: "0", Method: "Cash"})
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	_, _, err = svc.RecordPayment(context.Background(), 9, 999, RecordPaymentInput{Amount: "10", Method: "Cash"})
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	cancelled := repo.invoices[inv.ID]
	cancelled.Status = StatusCancelled
	repo.invoices[inv.ID] = cancelled
	_, _, err = svc.RecordPayment(context.Background(), 9, inv.ID, RecordPaymentInput{Amount: "10", Method: "Cash"})
	assert.ErrorIs(t, err, ErrInvoiceCancelled)
}

func TestOverdueInvoiceSettles(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)
	inv := createInvoice(t, svc)

	overdue := repo.invoices[inv.ID]
	overdue.Status = StatusOverdue
	repo.invoices[inv.ID] = overdue

	_, updated, err := svc.RecordPayment(context.Background(), 9, inv.ID, RecordPaymentInput{
		Amount: "10000", Method: "Cash",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, updated.Status, "partial payment keeps Overdue")

	_, updated, err = svc.RecordPayment(context.Background(), 9, inv.ID, RecordPaymentInput{
		Amount: "23040", Method: "Cash",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, updated.Status)
}

func TestMarkOverdueInvoices(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)
	inv := createInvoice(t, svc)

	past := time.Now().AddDate(0, 0, -3)
	stale := repo.invoices[inv.ID]
	stale.DueDate = &past
	repo.invoices[inv.ID] = stale

	n, err := svc.MarkOverdueInvoices(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, StatusOverdue, repo.invoices[inv.ID].Status)

	// Second sweep is a no-op.
	n, err = svc.MarkOverdueInvoices(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpireQuotations(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)

	q, err := svc.CreateQuotation(context.Background(), 9, CreateQuotationInput{
		CustomerID: 1,
		Items:      []LineInput{{ProductID: 1, Quantity: "2"}},
	})
	require.NoError(t, err)
	_, err = svc.TransitionQuotation(context.Background(), 9, q.ID, QuotationSent)
	require.NoError(t, err)

	past := time.Now().AddDate(0, 0, -1)
	sent := repo.quotations[q.ID]
	sent.ValidUntil = &past
	repo.quotations[q.ID] = sent

	n, err := svc.ExpireQuotations(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, QuotationExpired, repo.quotations[q.ID].Status)

	n, err = svc.ExpireQuotations(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n, "expired quotations are not swept twice")
}

func TestQuotationLifecycle(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)

	q, err := svc.CreateQuotation(context.Background(), 9, CreateQuotationInput{
		CustomerID: 1,
		Items: []LineInput{
			{ProductID: 1, Quantity: "10", DiscountPercent: "5"},
			{ProductID: 2, Quantity: "5"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "QT0001", q.QuotationNumber)
	assert.Equal(t, QuotationDraft, q.Status)
	assert.True(t, q.TotalAmount.Equal(dec("33040.00")), "same calculator as invoices")
	assert.Empty(t, repo.movements, "quotations never touch stock")

	_, err = svc.TransitionQuotation(context.Background(), 9, q.ID, QuotationAccepted)
	var transition *StatusTransitionError
	require.ErrorAs(t, err, &transition, "Draft cannot jump to Accepted")

	q, err = svc.TransitionQuotation(context.Background(), 9, q.ID, QuotationSent)
	require.NoError(t, err)
	assert.Equal(t, QuotationSent, q.Status)

	q, err = svc.TransitionQuotation(context.Background(), 9, q.ID, QuotationAccepted)
	require.NoError(t, err)
	assert.Equal(t, QuotationAccepted, q.Status)

	_, err = svc.TransitionQuotation(context.Background(), 9, q.ID, QuotationRejected)
	require.ErrorAs(t, err, &transition, "Accepted is terminal except for conversion")
}

func TestConvertQuotation(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)

	q, err := svc.CreateQuotation(context.Background(), 9, CreateQuotationInput{
		CustomerID: 1,
		Items: []LineInput{
			{ProductID: 1, Quantity: "10", DiscountPercent: "5"},
			{ProductID: 2, Quantity: "5"},
		},
	})
	require.NoError(t, err)

	_, err = svc.ConvertQuotation(context.Background(), 9, q.ID)
	var transition *StatusTransitionError
	require.ErrorAs(t, err, &transition, "only accepted quotations convert")

	_, err = svc.TransitionQuotation(context.Background(), 9, q.ID, QuotationSent)
	require.NoError(t, err)
	_, err = svc.TransitionQuotation(context.Background(), 9, q.ID, QuotationAccepted)
	require.NoError(t, err)

	inv, err := svc.ConvertQuotation(context.Background(), 9, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV0001", inv.InvoiceNumber)
	assert.True(t, inv.TotalAmount.Equal(q.TotalAmount), "conversion re-runs the same engine")
	assert.True(t, repo.stock[1].Equal(dec("30")), "conversion moves stock")
	require.Len(t, repo.movements, 2)

	converted, err := svc.Quotation(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, QuotationConverted, converted.Status)

	_, err = svc.ConvertQuotation(context.Background(), 9, q.ID)
	require.ErrorAs(t, err, &transition, "a quotation converts once")
}

func TestConvertQuotationAtomicWithStatusFlip(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)

	q, err := svc.CreateQuotation(context.Background(), 9, CreateQuotationInput{
		CustomerID: 1,
		Items:      []LineInput{{ProductID: 1, Quantity: "10"}},
	})
	require.NoError(t, err)
	_, err = svc.TransitionQuotation(context.Background(), 9, q.ID, QuotationSent)
	require.NoError(t, err)
	_, err = svc.TransitionQuotation(context.Background(), 9, q.ID, QuotationAccepted)
	require.NoError(t, err)

	repo.quotationStatusErr = errors.New("connection reset")
	_, err = svc.ConvertQuotation(context.Background(), 9, q.ID)
	require.Error(t, err)
	assert.Empty(t, repo.invoices, "failed status flip rolls the invoice back")
	assert.Empty(t, repo.movements, "failed status flip rolls stock back")
	assert.True(t, repo.stock[1].Equal(dec("40")))

	// The quotation is still Accepted, so the retry issues exactly one invoice.
	repo.quotationStatusErr = nil
	inv, err := svc.ConvertQuotation(context.Background(), 9, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV0001", inv.InvoiceNumber)
	require.Len(t, repo.movements, 1)
	assert.Equal(t, QuotationConverted, repo.quotations[q.ID].Status)
}

func TestConvertQuotationInsufficientStock(t *testing.T) {
	svc, repo, _ := newTestService(OverpayReject)
	seedShowroom(repo)

	q, err := svc.CreateQuotation(context.Background(), 9, CreateQuotationInput{
		CustomerID: 1,
		Items:      []LineInput{{ProductID: 1, Quantity: "100"}},
	})
	require.NoError(t, err)
	_, err = svc.TransitionQuotation(context.Background(), 9, q.ID, QuotationSent)
	require.NoError(t, err)
	_, err = svc.TransitionQuotation(context.Background(), 9, q.ID, QuotationAccepted)
	require.NoError(t, err)

	_, err = svc.ConvertQuotation(context.Background(), 9, q.ID)
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	after, err := svc.Quotation(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, QuotationAccepted, after.Status, "failed conversion keeps the quotation convertible")
	assert.Empty(t, repo.invoices)
}

func TestCustomerLifecycle(t *testing.T) {
	svc, _, _ := newTestService(OverpayReject)

	c, err := svc.CreateCustomer(context.Background(), 9, CustomerInput{Name: "  Sharma Interiors  ", Phone: "98200"})
	require.NoError(t, err)
	assert.Equal(t, "Sharma Interiors", c.Name)
	assert.True(t, c.IsActive)

	c, err = svc.UpdateCustomer(context.Background(), 9, c.ID, CustomerInput{Name: "Sharma Interiors Pvt Ltd"})
	require.NoError(t, err)
	assert.Equal(t, "Sharma Interiors Pvt Ltd", c.Name)

	require.NoError(t, svc.DeactivateCustomer(context.Background(), 9, c.ID))
	active, err := svc.Customers(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.Customers(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

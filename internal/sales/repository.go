package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockpilot/stockpilot/internal/docnum"
	"github.com/stockpilot/stockpilot/internal/inventory"
	"github.com/stockpilot/stockpilot/internal/platform/db"
)

// PgRepository persists sales documents in Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction with a bound TxStore.
func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

// LastDocumentNumber reads the most recently issued number in the series,
// locking its row so concurrent creators serialize. The unique index on the
// number column is the backstop for the empty-series race.
func (s *txStore) LastDocumentNumber(ctx context.Context, kind docnum.Kind) (string, error) {
	var query string
	switch kind {
	case docnum.KindInvoice:
		query = `SELECT invoice_number FROM sales_invoices ORDER BY id DESC LIMIT 1 FOR UPDATE`
	case docnum.KindQuotation:
		query = `SELECT quotation_number FROM quotations ORDER BY id DESC LIMIT 1 FOR UPDATE`
	default:
		return "", fmt.Errorf("%w: %q", docnum.ErrUnknownKind, string(kind))
	}
	var last string
	err := s.tx.QueryRow(ctx, query).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last document number: %w", err)
	}
	return last, nil
}

func (s *txStore) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1 AND is_active)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("customer exists: %w", err)
	}
	return exists, nil
}

func (s *txStore) ProductForSale(ctx context.Context, productID int64) (ProductSnapshot, error) {
	var p ProductSnapshot
	err := s.tx.QueryRow(ctx, `SELECT id, name, sku, unit_price, tax_rate, is_active FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &p.SKU, &p.UnitPrice, &p.TaxRate, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductSnapshot{}, fmt.Errorf("%w: product %d", ErrProductNotFound, productID)
	}
	if err != nil {
		return ProductSnapshot{}, fmt.Errorf("product snapshot: %w", err)
	}
	return p, nil
}

func (s *txStore) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `
		INSERT INTO sales_invoices (invoice_number, customer_id, invoice_date, due_date, subtotal, tax_amount, total_amount, paid_amount, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		inv.InvoiceNumber, inv.CustomerID, inv.InvoiceDate, inv.DueDate, inv.Subtotal,
		inv.TaxAmount, inv.TotalAmount, inv.PaidAmount, string(inv.Status),
		nullString(inv.Notes), nullInt(inv.CreatedBy)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert invoice: %w", err)
	}
	return id, nil
}

func (s *txStore) InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `
		INSERT INTO sales_invoice_items (invoice_id, product_id, quantity, unit_price, discount_percent, tax_rate, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		item.InvoiceID, item.ProductID, item.Quantity, item.UnitPrice,
		item.DiscountPercent, item.TaxRate, item.TotalPrice).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert invoice item: %w", err)
	}
	return id, nil
}

func (s *txStore) InvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	var status string
	err := s.tx.QueryRow(ctx, `
		SELECT id, invoice_number, customer_id, invoice_date, due_date, subtotal, tax_amount, total_amount, paid_amount, status, COALESCE(notes, ''), COALESCE(created_by, 0), created_at
		FROM sales_invoices WHERE id = $1 FOR UPDATE`, id).
		Scan(&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &inv.InvoiceDate, &inv.DueDate,
			&inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount, &inv.PaidAmount, &status,
			&inv.Notes, &inv.CreatedBy, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("invoice for update: %w", err)
	}
	inv.Status = InvoiceStatus(status)
	return inv, nil
}

func (s *txStore) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `
		INSERT INTO payments (invoice_id, amount, payment_method, payment_date, reference_number, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.InvoiceID, p.Amount, p.Method, p.PaymentDate, nullString(p.ReferenceNumber), nullInt(p.CreatedBy)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	return id, nil
}

func (s *txStore) UpdateInvoiceSettlement(ctx context.Context, id int64, paid decimal.Decimal, status InvoiceStatus) error {
	_, err := s.tx.Exec(ctx, `UPDATE sales_invoices SET paid_amount = $2, status = $3 WHERE id = $1`, id, paid, string(status))
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	return nil
}

func (s *txStore) InsertQuotation(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `
		INSERT INTO quotations (quotation_number, customer_id, quotation_date, valid_until, subtotal, tax_amount, total_amount, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		q.QuotationNumber, q.CustomerID, q.QuotationDate, q.ValidUntil, q.Subtotal,
		q.TaxAmount, q.TotalAmount, string(q.Status), nullString(q.Notes), nullInt(q.CreatedBy)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert quotation: %w", err)
	}
	return id, nil
}

func (s *txStore) InsertQuotationItem(ctx context.Context, quotationID int64, item InvoiceItem) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `
		INSERT INTO quotation_items (quotation_id, product_id, quantity, unit_price, discount_percent, tax_rate, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		quotationID, item.ProductID, item.Quantity, item.UnitPrice,
		item.DiscountPercent, item.TaxRate, item.TotalPrice).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert quotation item: %w", err)
	}
	return id, nil
}

func (s *txStore) QuotationForUpdate(ctx context.Context, id int64) (Quotation, error) {
	var q Quotation
	var status string
	err := s.tx.QueryRow(ctx, `
		SELECT id, quotation_number, customer_id, quotation_date, valid_until, subtotal, tax_amount, total_amount, status, COALESCE(notes, ''), COALESCE(created_by, 0), created_at
		FROM quotations WHERE id = $1 FOR UPDATE`, id).
		Scan(&q.ID, &q.QuotationNumber, &q.CustomerID, &q.QuotationDate, &q.ValidUntil,
			&q.Subtotal, &q.TaxAmount, &q.TotalAmount, &status, &q.Notes, &q.CreatedBy, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quotation{}, ErrQuotationNotFound
	}
	if err != nil {
		return Quotation{}, fmt.Errorf("quotation for update: %w", err)
	}
	q.Status = QuotationStatus(status)
	return q, nil
}

func (s *txStore) UpdateQuotationStatus(ctx context.Context, id int64, status QuotationStatus) error {
	_, err := s.tx.Exec(ctx, `UPDATE quotations SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update quotation status: %w", err)
	}
	return nil
}

func (s *txStore) Ledger() inventory.TxStore {
	return inventory.NewTxStore(s.tx)
}

const invoiceColumns = `i.id, i.invoice_number, i.customer_id, c.name, i.invoice_date, i.due_date,
i.subtotal, i.tax_amount, i.total_amount, i.paid_amount, i.status, COALESCE(i.notes, ''),
COALESCE(i.created_by, 0), i.created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &inv.CustomerName,
		&inv.InvoiceDate, &inv.DueDate, &inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount,
		&inv.PaidAmount, &status, &inv.Notes, &inv.CreatedBy, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("scan invoice: %w", err)
	}
	inv.Status = InvoiceStatus(status)
	return inv, nil
}

func (r *PgRepository) Invoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if filter.CustomerID > 0 {
		args = append(args, filter.CustomerID)
		where = append(where, fmt.Sprintf("i.customer_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("i.invoice_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("i.invoice_date <= $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")
	from := ` FROM sales_invoices i JOIN customers c ON c.id = i.customer_id WHERE ` + cond

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + invoiceColumns + from +
		fmt.Sprintf(` ORDER BY i.invoice_date DESC, i.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}

// Invoice loads the header with its line items and payments.
func (r *PgRepository) Invoice(ctx context.Context, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices i JOIN customers c ON c.id = i.customer_id WHERE i.id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}

	inv.Items, err = r.invoiceItems(ctx, `invoice_id`, `sales_invoice_items`, id)
	if err != nil {
		return Invoice{}, err
	}

	payRows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, amount, payment_method, payment_date, COALESCE(reference_number, ''), COALESCE(created_by, 0), created_at
		FROM payments WHERE invoice_id = $1 ORDER BY payment_date, id`, id)
	if err != nil {
		return Invoice{}, fmt.Errorf("list payments: %w", err)
	}
	defer payRows.Close()
	for payRows.Next() {
		var p Payment
		if err := payRows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaymentDate, &p.ReferenceNumber, &p.CreatedBy, &p.CreatedAt); err != nil {
			return Invoice{}, fmt.Errorf("scan payment: %w", err)
		}
		inv.Payments = append(inv.Payments, p)
	}
	return inv, payRows.Err()
}

func (r *PgRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sales_invoices SET status = 'Overdue'
		WHERE status = 'Pending' AND due_date IS NOT NULL AND due_date < $1`, asOf)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ExpireQuotations(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quotations SET status = 'Expired'
		WHERE status = 'Sent' AND valid_until IS NOT NULL AND valid_until < $1`, asOf)
	if err != nil {
		return 0, fmt.Errorf("expire quotations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) invoiceItems(ctx context.Context, fkColumn, table string, id int64) ([]InvoiceItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ii.id, ii.`+fkColumn+`, ii.product_id, p.name, p.sku, ii.quantity, ii.unit_price, ii.discount_percent, ii.tax_rate, ii.total_price
		FROM `+table+` ii
		JOIN products p ON p.id = ii.product_id
		WHERE ii.`+fkColumn+` = $1
		ORDER BY ii.id`, id)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []InvoiceItem{}
	for rows.Next() {
		var item InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.ProductID, &item.ProductName, &item.SKU,
			&item.Quantity, &item.UnitPrice, &item.DiscountPercent, &item.TaxRate, &item.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const quotationColumns = `q.id, q.quotation_number, q.customer_id, c.name, q.quotation_date, q.valid_until,
q.subtotal, q.tax_amount, q.total_amount, q.status, COALESCE(q.notes, ''), COALESCE(q.created_by, 0), q.created_at`

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	var status string
	err := row.Scan(&q.ID, &q.QuotationNumber, &q.CustomerID, &q.CustomerName,
		&q.QuotationDate, &q.ValidUntil, &q.Subtotal, &q.TaxAmount, &q.TotalAmount,
		&status, &q.Notes, &q.CreatedBy, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quotation{}, ErrQuotationNotFound
	}
	if err != nil {
		return Quotation{}, fmt.Errorf("scan quotation: %w", err)
	}
	q.Status = QuotationStatus(status)
	return q, nil
}

func (r *PgRepository) Quotations(ctx context.Context, limit, offset int) ([]Quotation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quotationColumns+`
		FROM quotations q JOIN customers c ON c.id = q.customer_id
		ORDER BY q.quotation_date DESC, q.id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list quotations: %w", err)
	}
	defer rows.Close()

	quotations := []Quotation{}
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, err
		}
		quotations = append(quotations, q)
	}
	return quotations, rows.Err()
}

func (r *PgRepository) Quotation(ctx context.Context, id int64) (Quotation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations q JOIN customers c ON c.id = q.customer_id WHERE q.id = $1`, id)
	q, err := scanQuotation(row)
	if err != nil {
		return Quotation{}, err
	}
	q.Items, err = r.invoiceItems(ctx, `quotation_id`, `quotation_items`, id)
	return q, err
}

const customerColumns = `id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(address, ''), COALESCE(gstin, ''), is_active, created_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.GSTIN, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrCustomerNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("scan customer: %w", err)
	}
	return c, nil
}

func (r *PgRepository) Customers(ctx context.Context, activeOnly bool) ([]Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *PgRepository) Customer(ctx context.Context, id int64) (Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

func (r *PgRepository) CreateCustomer(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone, email, address, gstin, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		c.Name, nullString(c.Phone), nullString(c.Email), nullString(c.Address), nullString(c.GSTIN), c.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert customer: %w", err)
	}
	return id, nil
}

func (r *PgRepository) UpdateCustomer(ctx context.Context, id int64, c Customer) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE customers SET name = $2, phone = $3, email = $4, address = $5, gstin = $6 WHERE id = $1`,
		id, c.Name, nullString(c.Phone), nullString(c.Email), nullString(c.Address), nullString(c.GSTIN))
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func (r *PgRepository) DeactivateCustomer(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE customers SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

package backup

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// snapshotQueries lists the exported tables in dependency order. Columns
// are spelled out so a schema change breaks the backup loudly instead of
// silently shifting columns.
var snapshotQueries = []struct {
	sheet string
	query string
}{
	{"categories", `SELECT id, name, COALESCE(description, ''), created_at FROM categories ORDER BY id`},
	{"products", `SELECT id, sku, name, COALESCE(category_id, 0), unit_price, cost_price, tax_rate, unit, reorder_level, is_active, created_at FROM products ORDER BY id`},
	{"inventory", `SELECT product_id, current_stock, reserved_stock, last_updated FROM inventory ORDER BY product_id`},
	{"stock_movements", `SELECT id, product_id, movement_type, quantity, COALESCE(reference_type, ''), COALESCE(reference_id, 0), COALESCE(notes, ''), COALESCE(created_by, 0), created_at FROM stock_movements ORDER BY id`},
	{"customers", `SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(address, ''), COALESCE(gstin, ''), is_active, created_at FROM customers ORDER BY id`},
	{"suppliers", `SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(address, ''), COALESCE(gstin, ''), is_active, created_at FROM suppliers ORDER BY id`},
	{"sales_invoices", `SELECT id, invoice_number, customer_id, invoice_date, due_date, subtotal, tax_amount, total_amount, paid_amount, status, COALESCE(notes, ''), COALESCE(created_by, 0), created_at FROM sales_invoices ORDER BY id`},
	{"sales_invoice_items", `SELECT id, invoice_id, product_id, quantity, unit_price, discount_percent, tax_rate, total_price FROM sales_invoice_items ORDER BY id`},
	{"payments", `SELECT id, invoice_id, amount, payment_method, payment_date, COALESCE(reference_number, ''), COALESCE(created_by, 0), created_at FROM payments ORDER BY id`},
	{"quotations", `SELECT id, quotation_number, customer_id, quotation_date, valid_until, subtotal, tax_amount, total_amount, status, COALESCE(notes, ''), COALESCE(created_by, 0), created_at FROM quotations ORDER BY id`},
	{"quotation_items", `SELECT id, quotation_id, product_id, quantity, unit_price, discount_percent, tax_rate, total_price FROM quotation_items ORDER BY id`},
	{"purchase_orders", `SELECT id, order_number, supplier_id, order_date, expected_date, subtotal, tax_amount, total_amount, status, COALESCE(notes, ''), COALESCE(created_by, 0), created_at, received_at FROM purchase_orders ORDER BY id`},
	{"purchase_order_items", `SELECT id, purchase_order_id, product_id, quantity, unit_price, tax_rate, total_price, received_quantity FROM purchase_order_items ORDER BY id`},
	{"users", `SELECT id, username, full_name, role, COALESCE(email, ''), is_active, last_login, created_at FROM users ORDER BY id`},
	{"audit_logs", `SELECT id, COALESCE(user_id, 0), action, entity, COALESCE(entity_id, 0), COALESCE(details, ''), created_at FROM audit_logs ORDER BY id`},
}

// PgSource snapshots the Postgres dataset inside one read-only repeatable
// read transaction, so backups never observe half of a document write.
type PgSource struct {
	pool *pgxpool.Pool
}

func NewPgSource(pool *pgxpool.Pool) *PgSource {
	return &PgSource{pool: pool}
}

func (s *PgSource) Snapshot(ctx context.Context) ([]Table, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tables := make([]Table, 0, len(snapshotQueries))
	for _, q := range snapshotQueries {
		table, err := readTable(ctx, tx, q.sheet, q.query)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit snapshot tx: %w", err)
	}
	return tables, nil
}

func readTable(ctx context.Context, tx pgx.Tx, sheet, query string) (Table, error) {
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return Table{}, fmt.Errorf("snapshot %s: %w", sheet, err)
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	header := make([]string, len(descs))
	for i, d := range descs {
		header[i] = d.Name
	}

	table := Table{Name: sheet, Header: header}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return Table{}, fmt.Errorf("snapshot %s values: %w", sheet, err)
		}
		table.Rows = append(table.Rows, values)
	}
	return table, rows.Err()
}

package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockpilot/stockpilot/internal/inventory"
	"github.com/stockpilot/stockpilot/internal/platform/db"
)

// PgRepository persists purchase orders in Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) LastOrderNumber(ctx context.Context) (string, error) {
	var last string
	err := s.tx.QueryRow(ctx, `SELECT order_number FROM purchase_orders ORDER BY id DESC LIMIT 1 FOR UPDATE`).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last order number: %w", err)
	}
	return last, nil
}

func (s *txStore) SupplierExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM suppliers WHERE id = $1 AND is_active)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("supplier exists: %w", err)
	}
	return exists, nil
}

func (s *txStore) ProductRef(ctx context.Context, productID int64) (ProductRef, error) {
	var p ProductRef
	err := s.tx.QueryRow(ctx, `SELECT id, name, sku, tax_rate FROM products WHERE id = $1 AND is_active`, productID).
		Scan(&p.ID, &p.Name, &p.SKU, &p.TaxRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductRef{}, fmt.Errorf("%w: product %d", ErrProductNotFound, productID)
	}
	if err != nil {
		return ProductRef{}, fmt.Errorf("product ref: %w", err)
	}
	return p, nil
}

func (s *txStore) InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (order_number, supplier_id, order_date, expected_date, subtotal, tax_amount, total_amount, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		po.OrderNumber, po.SupplierID, po.OrderDate, po.ExpectedDate, po.Subtotal,
		po.TaxAmount, po.TotalAmount, string(po.Status), nullString(po.Notes), nullInt(po.CreatedBy)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert purchase order: %w", err)
	}
	return id, nil
}

func (s *txStore) InsertOrderItem(ctx context.Context, item PurchaseOrderItem) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `
		INSERT INTO purchase_order_items (purchase_order_id, product_id, quantity, unit_price, tax_rate, total_price, received_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
		RETURNING id`,
		item.PurchaseOrderID, item.ProductID, item.Quantity, item.UnitPrice, item.TaxRate, item.TotalPrice).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order item: %w", err)
	}
	return id, nil
}

func (s *txStore) OrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status string
	err := s.tx.QueryRow(ctx, `
		SELECT id, order_number, supplier_id, order_date, expected_date, subtotal, tax_amount, total_amount, status, COALESCE(notes, ''), COALESCE(created_by, 0), created_at, received_at
		FROM purchase_orders WHERE id = $1 FOR UPDATE`, id).
		Scan(&po.ID, &po.OrderNumber, &po.SupplierID, &po.OrderDate, &po.ExpectedDate,
			&po.Subtotal, &po.TaxAmount, &po.TotalAmount, &status, &po.Notes,
			&po.CreatedBy, &po.CreatedAt, &po.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("order for update: %w", err)
	}
	po.Status = OrderStatus(status)
	return po, nil
}

func (s *txStore) OrderItems(ctx context.Context, orderID int64) ([]PurchaseOrderItem, error) {
	return orderItems(ctx, s.tx, orderID)
}

func (s *txStore) MarkReceived(ctx context.Context, orderID int64, at time.Time) error {
	_, err := s.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, received_at = $3 WHERE id = $1`,
		orderID, string(StatusReceived), at)
	if err != nil {
		return fmt.Errorf("mark received: %w", err)
	}
	return nil
}

func (s *txStore) SetItemReceived(ctx context.Context, itemID int64, qty decimal.Decimal) error {
	_, err := s.tx.Exec(ctx, `UPDATE purchase_order_items SET received_quantity = $2 WHERE id = $1`, itemID, qty)
	if err != nil {
		return fmt.Errorf("set item received: %w", err)
	}
	return nil
}

func (s *txStore) UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	_, err := s.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2 WHERE id = $1`, orderID, string(status))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func (s *txStore) Ledger() inventory.TxStore {
	return inventory.NewTxStore(s.tx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func orderItems(ctx context.Context, q querier, orderID int64) ([]PurchaseOrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT poi.id, poi.purchase_order_id, poi.product_id, p.name, p.sku, poi.quantity, poi.unit_price, poi.tax_rate, poi.total_price, poi.received_quantity
		FROM purchase_order_items poi
		JOIN products p ON p.id = poi.product_id
		WHERE poi.purchase_order_id = $1
		ORDER BY poi.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	items := []PurchaseOrderItem{}
	for rows.Next() {
		var item PurchaseOrderItem
		if err := rows.Scan(&item.ID, &item.PurchaseOrderID, &item.ProductID, &item.ProductName, &item.SKU,
			&item.Quantity, &item.UnitPrice, &item.TaxRate, &item.TotalPrice, &item.ReceivedQuantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const orderColumns = `po.id, po.order_number, po.supplier_id, s.name, po.order_date, po.expected_date,
po.subtotal, po.tax_amount, po.total_amount, po.status, COALESCE(po.notes, ''),
COALESCE(po.created_by, 0), po.created_at, po.received_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status string
	err := row.Scan(&po.ID, &po.OrderNumber, &po.SupplierID, &po.SupplierName,
		&po.OrderDate, &po.ExpectedDate, &po.Subtotal, &po.TaxAmount, &po.TotalAmount,
		&status, &po.Notes, &po.CreatedBy, &po.CreatedAt, &po.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("scan order: %w", err)
	}
	po.Status = OrderStatus(status)
	return po, nil
}

func (r *PgRepository) Orders(ctx context.Context, status OrderStatus, limit, offset int) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+`
		FROM purchase_orders po JOIN suppliers s ON s.id = po.supplier_id
		WHERE ($1 = '' OR po.status = $1)
		ORDER BY po.order_date DESC, po.id DESC LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []PurchaseOrder{}
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

func (r *PgRepository) Order(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders po JOIN suppliers s ON s.id = po.supplier_id WHERE po.id = $1`, id)
	po, err := scanOrder(row)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items, err = orderItems(ctx, r.pool, id)
	return po, err
}

func (r *PgRepository) Suppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	query := `SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(address, ''), COALESCE(gstin, ''), is_active, created_at FROM suppliers`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := []Supplier{}
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Phone, &s.Email, &s.Address, &s.GSTIN, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

func (r *PgRepository) CreateSupplier(ctx context.Context, s Supplier) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, phone, email, address, gstin, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		s.Name, nullString(s.Phone), nullString(s.Email), nullString(s.Address), nullString(s.GSTIN), s.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert supplier: %w", err)
	}
	return id, nil
}

func (r *PgRepository) DeactivateSupplier(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE suppliers SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate supplier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSupplierNotFound
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

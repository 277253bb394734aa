package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockpilot/stockpilot/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction with a
// transaction-bound TxStore.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

// NewTxStore binds ledger persistence to an already-open transaction. Used
// by the sales and procurement repositories so document writes and stock
// movements share one transaction.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) StockLevelForUpdate(ctx context.Context, productID int64) (StockLevel, decimal.Decimal, error) {
	var level StockLevel
	var reorder decimal.Decimal
	err := s.tx.QueryRow(ctx, `SELECT i.product_id, i.current_stock, i.reserved_stock, i.last_updated, p.reorder_level
FROM inventory i
JOIN products p ON p.id = i.product_id
WHERE i.product_id = $1
FOR UPDATE OF i`, productID).
		Scan(&level.ProductID, &level.CurrentStock, &level.ReservedStock, &level.LastUpdated, &reorder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLevel{}, decimal.Zero, ErrStockLevelNotFound
		}
		return StockLevel{}, decimal.Zero, err
	}
	return level, reorder, nil
}

func (s *txStore) UpdateStockLevel(ctx context.Context, productID int64, qty decimal.Decimal) error {
	_, err := s.tx.Exec(ctx, `UPDATE inventory SET current_stock = $2, last_updated = NOW() WHERE product_id = $1`, productID, qty)
	return err
}

func (s *txStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, movement_type, quantity, reference_type, reference_id, notes, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		m.ProductID, string(m.Type), m.Quantity, nullString(m.ReferenceType), nullInt(m.ReferenceID), m.Notes, nullInt(m.CreatedBy), m.CreatedAt).
		Scan(&id)
	return id, err
}

// Movements lists movement history, most recent first.
func (r *Repository) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT sm.id, sm.product_id, p.name, sm.movement_type, sm.quantity,
COALESCE(sm.reference_type, ''), COALESCE(sm.reference_id, 0), sm.notes, COALESCE(sm.created_by, 0), sm.created_at
FROM stock_movements sm
JOIN products p ON p.id = sm.product_id
WHERE ($1 = 0 OR sm.product_id = $1)
ORDER BY sm.created_at DESC, sm.id DESC
LIMIT $2`, filter.ProductID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var typ string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ProductName, &typ, &m.Quantity,
			&m.ReferenceType, &m.ReferenceID, &m.Notes, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(typ)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// LowStock lists active products where current stock is at or below the
// reorder level, ordered by deficit ascending (worst shortfall first).
func (r *Repository) LowStock(ctx context.Context) ([]LowStockProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.sku, p.name, p.unit, COALESCE(i.current_stock, 0), p.reorder_level
FROM products p
LEFT JOIN inventory i ON i.product_id = p.id
WHERE p.is_active AND COALESCE(i.current_stock, 0) <= p.reorder_level
ORDER BY (COALESCE(i.current_stock, 0) - p.reorder_level) ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []LowStockProduct{}
	for rows.Next() {
		var p LowStockProduct
		if err := rows.Scan(&p.ProductID, &p.SKU, &p.Name, &p.Unit, &p.CurrentStock, &p.ReorderLevel); err != nil {
			return nil, err
		}
		p.Deficit = p.ReorderLevel.Sub(p.CurrentStock)
		products = append(products, p)
	}
	return products, rows.Err()
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

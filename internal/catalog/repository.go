package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockpilot/stockpilot/internal/platform/db"
)

// PgRepository persists the catalog in Postgres.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const productColumns = `p.id, p.sku, p.name, p.category_id, COALESCE(c.name, ''),
COALESCE(p.description, ''), p.unit_price, p.cost_price, p.tax_rate, p.unit,
COALESCE(p.barcode, ''), COALESCE(p.hsn_code, ''), p.is_active, p.created_at, p.updated_at`

const productFrom = ` FROM products p LEFT JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.CategoryID, &p.CategoryName,
		&p.Description, &p.UnitPrice, &p.CostPrice, &p.TaxRate, &p.Unit,
		&p.Barcode, &p.HSNCode, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

func (r *PgRepository) Products(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := fmt.Sprintf("$%d", len(args))
		where = append(where, fmt.Sprintf("(p.name ILIKE %s OR p.sku ILIKE %s OR p.barcode ILIKE %s)", n, n, n))
	}
	if filter.CategoryID > 0 {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "p.is_active")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+productFrom+` WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + productColumns + productFrom + ` WHERE ` + cond +
		fmt.Sprintf(` ORDER BY p.name LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *PgRepository) Product(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id = $1`, id)
	return scanProduct(row)
}

// CreateProduct inserts the product row and its stock record in one
// transaction so a product never exists without an inventory row.
func (r *PgRepository) CreateProduct(ctx context.Context, p Product, openingStock, reorderLevel decimal.Decimal) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO products (sku, name, category_id, description, unit_price, cost_price, tax_rate, unit, barcode, hsn_code, reorder_level, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`,
			p.SKU, p.Name, p.CategoryID, nullString(p.Description), p.UnitPrice, p.CostPrice,
			p.TaxRate, p.Unit, nullString(p.Barcode), nullString(p.HSNCode), reorderLevel, p.IsActive,
		).Scan(&id)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateSKU
			}
			return fmt.Errorf("insert product: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO inventory (product_id, current_stock, reserved_stock, last_updated)
			VALUES ($1, $2, 0, NOW())`, id, openingStock)
		if err != nil {
			return fmt.Errorf("insert stock record: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgRepository) UpdateProduct(ctx context.Context, id int64, p Product) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET sku = $2, name = $3, category_id = $4, description = $5, unit_price = $6,
		    cost_price = $7, tax_rate = $8, unit = $9, barcode = $10, hsn_code = $11,
		    updated_at = NOW()
		WHERE id = $1`,
		id, p.SKU, p.Name, p.CategoryID, nullString(p.Description), p.UnitPrice,
		p.CostPrice, p.TaxRate, p.Unit, nullString(p.Barcode), nullString(p.HSNCode))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateSKU
		}
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *PgRepository) DeactivateProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *PgRepository) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.name, COALESCE(c.description, ''), COUNT(p.id), c.created_at
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id AND p.is_active
		GROUP BY c.id
		ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ProductCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *PgRepository) CreateCategory(ctx context.Context, c Category) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`,
		c.Name, nullString(c.Description)).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrDuplicateName
		}
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return id, nil
}

func (r *PgRepository) DeleteCategory(ctx context.Context, id int64) error {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE category_id = $1`, id).Scan(&count); err != nil {
		return fmt.Errorf("count category products: %w", err)
	}
	if count > 0 {
		return ErrCategoryInUse
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PgRepository aggregates over the sales and inventory tables. All queries
// exclude cancelled invoices.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) SalesSummary(ctx context.Context, from, to time.Time) (SalesSummary, error) {
	s := SalesSummary{From: from, To: to}
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_amount), 0),
		       COALESCE(SUM(tax_amount), 0),
		       COALESCE(SUM(paid_amount), 0),
		       COALESCE(SUM(total_amount - paid_amount), 0)
		FROM sales_invoices
		WHERE status <> 'Cancelled' AND invoice_date >= $1 AND invoice_date <= $2`,
		from, to).
		Scan(&s.InvoiceCount, &s.TotalSales, &s.TotalTax, &s.TotalPaid, &s.TotalPending)
	if err != nil {
		return SalesSummary{}, fmt.Errorf("sales summary: %w", err)
	}
	if s.InvoiceCount > 0 {
		s.AverageTicket = s.TotalSales.Div(decimal.NewFromInt(int64(s.InvoiceCount))).Round(2)
	} else {
		s.AverageTicket = decimal.Zero
	}
	return s, nil
}

func (r *PgRepository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.sku, p.name, SUM(ii.quantity), SUM(ii.total_price)
		FROM sales_invoice_items ii
		JOIN sales_invoices i ON i.id = ii.invoice_id
		JOIN products p ON p.id = ii.product_id
		WHERE i.status <> 'Cancelled' AND i.invoice_date >= $1 AND i.invoice_date <= $2
		GROUP BY p.id
		ORDER BY SUM(ii.total_price) DESC
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	products := []TopProduct{}
	for rows.Next() {
		var p TopProduct
		if err := rows.Scan(&p.ProductID, &p.SKU, &p.Name, &p.QuantitySold, &p.Revenue); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *PgRepository) DailySales(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT TO_CHAR(invoice_date, 'YYYY-MM-DD'), COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM sales_invoices
		WHERE status <> 'Cancelled' AND invoice_date >= $1 AND invoice_date <= $2
		GROUP BY 1
		ORDER BY 1`, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	defer rows.Close()

	daily := []DailySales{}
	for rows.Next() {
		var d DailySales
		if err := rows.Scan(&d.Date, &d.InvoiceCount, &d.Total); err != nil {
			return nil, fmt.Errorf("scan daily sales: %w", err)
		}
		daily = append(daily, d)
	}
	return daily, rows.Err()
}

func (r *PgRepository) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	err := r.pool.QueryRow(ctx, `
		SELECT
		  COALESCE((SELECT SUM(total_amount) FROM sales_invoices WHERE status <> 'Cancelled' AND invoice_date::date = CURRENT_DATE), 0),
		  (SELECT COUNT(*) FROM sales_invoices WHERE status <> 'Cancelled' AND invoice_date::date = CURRENT_DATE),
		  COALESCE((SELECT SUM(total_amount) FROM sales_invoices WHERE status <> 'Cancelled' AND DATE_TRUNC('month', invoice_date) = DATE_TRUNC('month', CURRENT_DATE)), 0),
		  COALESCE((SELECT SUM(total_amount - paid_amount) FROM sales_invoices WHERE status IN ('Pending', 'Overdue')), 0),
		  (SELECT COUNT(*) FROM sales_invoices WHERE status = 'Overdue'),
		  (SELECT COUNT(*) FROM products p LEFT JOIN inventory i ON i.product_id = p.id WHERE p.is_active AND COALESCE(i.current_stock, 0) <= p.reorder_level),
		  (SELECT COUNT(*) FROM products WHERE is_active),
		  (SELECT COUNT(*) FROM customers WHERE is_active)`).
		Scan(&d.TodaySales, &d.TodayInvoices, &d.MonthSales, &d.OutstandingAmount,
			&d.OverdueInvoices, &d.LowStockCount, &d.ActiveProducts, &d.ActiveCustomers)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	return d, nil
}

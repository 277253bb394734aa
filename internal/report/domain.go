package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesSummary aggregates invoices between two dates.
type SalesSummary struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	InvoiceCount  int             `json:"invoice_count"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalPending  decimal.Decimal `json:"total_pending"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}

// TopProduct is one row of the best-sellers report.
type TopProduct struct {
	ProductID    int64           `json:"product_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	QuantitySold decimal.Decimal `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// DailySales is one day of the sales time series.
type DailySales struct {
	Date         string          `json:"date"`
	InvoiceCount int             `json:"invoice_count"`
	Total        decimal.Decimal `json:"total"`
}

// Dashboard is the landing-page aggregate.
type Dashboard struct {
	TodaySales        decimal.Decimal `json:"today_sales"`
	TodayInvoices     int             `json:"today_invoices"`
	MonthSales        decimal.Decimal `json:"month_sales"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	OverdueInvoices   int             `json:"overdue_invoices"`
	LowStockCount     int             `json:"low_stock_count"`
	ActiveProducts    int             `json:"active_products"`
	ActiveCustomers   int             `json:"active_customers"`
}

// SalesReport bundles the full report payload.
type SalesReport struct {
	Summary     SalesSummary `json:"summary"`
	TopProducts []TopProduct `json:"top_products"`
	Daily       []DailySales `json:"daily"`
}

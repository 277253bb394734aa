package pdf

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockpilot/stockpilot/internal/sales"
)

func TestRenderInvoice(t *testing.T) {
	r := NewRenderer(Business{
		Name:    "Sharma Plywood & Hardware",
		Address: "12 Timber Market, Pune",
		Phone:   "+91 98220 11223",
		GSTIN:   "27AAAPL1234C1ZV",
	})

	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	inv := sales.Invoice{
		ID:            1,
		InvoiceNumber: "INV0042",
		CustomerID:    7,
		InvoiceDate:   time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		DueDate:       &due,
		Subtotal:      decimal.RequireFromString("28000.00"),
		TaxAmount:     decimal.RequireFromString("5040.00"),
		TotalAmount:   decimal.RequireFromString("33040.00"),
		PaidAmount:    decimal.RequireFromString("10000.00"),
		Status:        sales.StatusPending,
		Notes:         "Delivery included",
		Items: []sales.InvoiceItem{
			{
				ProductName:     "Marine Plywood 18mm",
				SKU:             "PLY001",
				Quantity:        decimal.NewFromInt(10),
				UnitPrice:       decimal.RequireFromString("2950.00"),
				DiscountPercent: decimal.NewFromInt(5),
				TaxRate:         decimal.NewFromInt(18),
				TotalPrice:      decimal.RequireFromString("28025.00"),
			},
		},
	}
	customer := sales.Customer{
		ID:    7,
		Name:  "Sharma Interiors",
		Phone: "+91 98220 44556",
		GSTIN: "27AABCS1234D1ZW",
	}

	doc, err := r.Render(inv, customer)
	require.NoError(t, err)
	require.NotEmpty(t, doc)
	require.Equal(t, "%PDF", string(doc[:4]))
}

func TestRenderInvoiceWithoutOptionalFields(t *testing.T) {
	r := NewRenderer(Business{Name: "Sharma Plywood & Hardware"})

	inv := sales.Invoice{
		InvoiceNumber: "INV0001",
		InvoiceDate:   time.Now(),
		Subtotal:      decimal.Zero,
		TaxAmount:     decimal.Zero,
		TotalAmount:   decimal.Zero,
		PaidAmount:    decimal.Zero,
		Status:        sales.StatusPaid,
	}

	doc, err := r.Render(inv, sales.Customer{Name: "Walk-in"})
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(doc[:4]))
}

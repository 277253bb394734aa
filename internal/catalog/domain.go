package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item. Deleting a product only clears is_active so
// historical documents keep resolving.
type Product struct {
	ID           int64           `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	CategoryID   *int64          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	Description  string          `json:"description,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	Unit         string          `json:"unit"`
	Barcode      string          `json:"barcode,omitempty"`
	HSNCode      string          `json:"hsn_code,omitempty"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Category groups products.
type Category struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	ProductCount int       `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProductInput is the create/update payload. Prices arrive as strings so
// clients never round through float JSON numbers.
type ProductInput struct {
	SKU           string `json:"sku" validate:"omitempty,max=50"`
	Name          string `json:"name" validate:"required,max=200"`
	CategoryID    *int64 `json:"category_id" validate:"omitempty,gt=0"`
	Description   string `json:"description" validate:"max=2000"`
	UnitPrice     string `json:"unit_price" validate:"required"`
	CostPrice     string `json:"cost_price" validate:"omitempty"`
	TaxRate       string `json:"tax_rate" validate:"omitempty"`
	Unit          string `json:"unit" validate:"omitempty,max=20"`
	Barcode       string `json:"barcode" validate:"omitempty,max=50"`
	HSNCode       string `json:"hsn_code" validate:"omitempty,max=20"`
	OpeningStock  string `json:"opening_stock" validate:"omitempty"`
	ReorderLevel  string `json:"reorder_level" validate:"omitempty"`
}

// CategoryInput is the category create/update payload.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search     string
	CategoryID int64
	ActiveOnly bool
	Limit      int
	Offset     int
}

var (
	ErrProductNotFound  = errors.New("catalog: product not found")
	ErrCategoryNotFound = errors.New("catalog: category not found")
	ErrDuplicateSKU     = errors.New("catalog: sku already exists")
	ErrDuplicateName    = errors.New("catalog: category name already exists")
	ErrCategoryInUse    = errors.New("catalog: category still has products")
	ErrNegativePrice    = errors.New("catalog: prices must not be negative")
	ErrBadDecimal       = errors.New("catalog: malformed decimal value")
)

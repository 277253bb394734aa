package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Repository is the persistence port for the catalog.
type Repository interface {
	Products(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Product(ctx context.Context, id int64) (Product, error)
	// CreateProduct inserts the product together with its opening stock
	// record in a single transaction.
	CreateProduct(ctx context.Context, p Product, openingStock, reorderLevel decimal.Decimal) (int64, error)
	UpdateProduct(ctx context.Context, id int64, p Product) error
	DeactivateProduct(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c Category) (int64, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// AuditPort records catalog mutations.
type AuditPort interface {
	Record(ctx context.Context, userID int64, action, entity string, entityID int64, details string)
}

type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
}

func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

func (s *Service) Products(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.Products(ctx, filter)
}

func (s *Service) Product(ctx context.Context, id int64) (Product, error) {
	return s.repo.Product(ctx, id)
}

// CreateProduct registers a product and opens its stock record atomically.
// When no SKU is supplied one is derived from the category and name.
func (s *Service) CreateProduct(ctx context.Context, actorID int64, input ProductInput) (Product, error) {
	p, openingStock, reorderLevel, err := s.fromInput(ctx, input)
	if err != nil {
		return Product{}, err
	}
	if p.SKU == "" {
		p.SKU = SuggestSKU(p.CategoryName, p.Name)
	}
	p.IsActive = true

	id, err := s.repo.CreateProduct(ctx, p, openingStock, reorderLevel)
	if err != nil {
		return Product{}, err
	}
	p.ID = id
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "CREATE", "products", id, "sku="+p.SKU)
	}
	s.logger.Info("product created", "product_id", id, "sku", p.SKU)
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, actorID, id int64, input ProductInput) (Product, error) {
	p, _, _, err := s.fromInput(ctx, input)
	if err != nil {
		return Product{}, err
	}
	if err := s.repo.UpdateProduct(ctx, id, p); err != nil {
		return Product{}, err
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "UPDATE", "products", id, "")
	}
	return s.repo.Product(ctx, id)
}

// DeactivateProduct soft-deletes a product. Stock and movement history stay.
func (s *Service) DeactivateProduct(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "DEACTIVATE", "products", id, "")
	}
	return nil
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.Categories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, actorID int64, input CategoryInput) (Category, error) {
	c := Category{Name: strings.TrimSpace(input.Name), Description: input.Description}
	id, err := s.repo.CreateCategory(ctx, c)
	if err != nil {
		return Category{}, err
	}
	c.ID = id
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "CREATE", "categories", id, "name="+c.Name)
	}
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "DELETE", "categories", id, "")
	}
	return nil
}

func (s *Service) fromInput(ctx context.Context, input ProductInput) (Product, decimal.Decimal, decimal.Decimal, error) {
	unitPrice, err := parseAmount(input.UnitPrice)
	if err != nil {
		return Product{}, decimal.Zero, decimal.Zero, fmt.Errorf("unit_price: %w", err)
	}
	costPrice, err := parseAmount(input.CostPrice)
	if err != nil {
		return Product{}, decimal.Zero, decimal.Zero, fmt.Errorf("cost_price: %w", err)
	}
	taxRate, err := parseAmount(input.TaxRate)
	if err != nil {
		return Product{}, decimal.Zero, decimal.Zero, fmt.Errorf("tax_rate: %w", err)
	}
	openingStock, err := parseAmount(input.OpeningStock)
	if err != nil {
		return Product{}, decimal.Zero, decimal.Zero, fmt.Errorf("opening_stock: %w", err)
	}
	reorderLevel, err := parseAmount(input.ReorderLevel)
	if err != nil {
		return Product{}, decimal.Zero, decimal.Zero, fmt.Errorf("reorder_level: %w", err)
	}

	p := Product{
		SKU:         strings.ToUpper(strings.TrimSpace(input.SKU)),
		Name:        strings.TrimSpace(input.Name),
		CategoryID:  input.CategoryID,
		Description: input.Description,
		UnitPrice:   unitPrice,
		CostPrice:   costPrice,
		TaxRate:     taxRate,
		Unit:        input.Unit,
		Barcode:     input.Barcode,
		HSNCode:     input.HSNCode,
	}
	if p.Unit == "" {
		p.Unit = "pcs"
	}
	if input.CategoryID != nil {
		// Resolve the name up front so SKU suggestion can use it and the
		// foreign key fails with a clean error instead of 23503.
		cats, err := s.repo.Categories(ctx)
		if err != nil {
			return Product{}, decimal.Zero, decimal.Zero, err
		}
		found := false
		for _, c := range cats {
			if c.ID == *input.CategoryID {
				p.CategoryName = c.Name
				found = true
				break
			}
		}
		if !found {
			return Product{}, decimal.Zero, decimal.Zero, ErrCategoryNotFound
		}
	}
	return p, openingStock, reorderLevel, nil
}

// parseAmount parses a non-negative decimal, treating "" as zero.
func parseAmount(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrBadDecimal
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativePrice
	}
	return d, nil
}

// SuggestSKU derives a readable SKU candidate from the category and product
// name, with a time-based suffix to dodge collisions. The unique index on
// products.sku is still the authority.
func SuggestSKU(category, name string) string {
	prefix := letters(category, 3)
	if prefix == "" {
		prefix = "PRD"
	}
	stem := letters(name, 3)
	suffix := time.Now().Unix() % 10000
	return fmt.Sprintf("%s-%s%04d", prefix, stem, suffix)
}

func letters(s string, n int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() >= n {
				break
			}
		}
	}
	return b.String()
}

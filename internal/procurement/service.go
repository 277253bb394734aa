package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockpilot/stockpilot/internal/docnum"
	"github.com/stockpilot/stockpilot/internal/inventory"
	"github.com/stockpilot/stockpilot/internal/pricing"
)

// ProductRef is the product slice the ordering path needs.
type ProductRef struct {
	ID      int64
	Name    string
	SKU     string
	TaxRate decimal.Decimal
}

// TxStore exposes procurement persistence bound to one open transaction.
type TxStore interface {
	LastOrderNumber(ctx context.Context) (string, error)
	SupplierExists(ctx context.Context, id int64) (bool, error)
	ProductRef(ctx context.Context, productID int64) (ProductRef, error)

	InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertOrderItem(ctx context.Context, item PurchaseOrderItem) (int64, error)
	OrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	OrderItems(ctx context.Context, orderID int64) ([]PurchaseOrderItem, error)
	MarkReceived(ctx context.Context, orderID int64, at time.Time) error
	SetItemReceived(ctx context.Context, itemID int64, qty decimal.Decimal) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error

	Ledger() inventory.TxStore
}

// Repository is the procurement persistence port.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, store TxStore) error) error

	Orders(ctx context.Context, status OrderStatus, limit, offset int) ([]PurchaseOrder, error)
	Order(ctx context.Context, id int64) (PurchaseOrder, error)

	Suppliers(ctx context.Context, activeOnly bool) ([]Supplier, error)
	CreateSupplier(ctx context.Context, s Supplier) (int64, error)
	DeactivateSupplier(ctx context.Context, id int64) error
}

// StockNotifier receives committed movement results after the receiving
// transaction closes.
type StockNotifier interface {
	NotifyCommitted(ctx context.Context, results []inventory.ApplyResult)
}

// AuditPort records procurement mutations.
type AuditPort interface {
	Record(ctx context.Context, userID int64, action, entity string, entityID int64, details string)
}

type Service struct {
	repo     Repository
	ledger   *inventory.Ledger
	notifier StockNotifier
	audit    AuditPort
	logger   *slog.Logger
}

func NewService(repo Repository, ledger *inventory.Ledger, notifier StockNotifier, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, notifier: notifier, audit: audit, logger: logger}
}

// CreateOrder mints a PO number and persists the order with computed totals.
// Ordering never touches stock; only receiving does.
func (s *Service) CreateOrder(ctx context.Context, actorID int64, input CreateOrderInput) (PurchaseOrder, error) {
	if len(input.Items) == 0 {
		return PurchaseOrder{}, ErrNoLineItems
	}
	orderDate, err := parseDateOr(input.OrderDate, time.Now())
	if err != nil {
		return PurchaseOrder{}, err
	}
	expectedDate, err := parseDatePtr(input.ExpectedDate)
	if err != nil {
		return PurchaseOrder{}, err
	}

	var (
		orderID int64
		number  string
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		ok, err := store.SupplierExists(ctx, input.SupplierID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSupplierNotFound
		}

		type pricedLine struct {
			item PurchaseOrderItem
		}
		lines := make([]pricedLine, 0, len(input.Items))
		amounts := make([]pricing.LineAmounts, 0, len(input.Items))
		for i, in := range input.Items {
			qty, err := parsePositive(in.Quantity)
			if err != nil {
				return fmt.Errorf("line %d quantity: %w", i+1, err)
			}
			unitPrice, err := parsePositive(in.UnitPrice)
			if err != nil {
				return fmt.Errorf("line %d unit_price: %w", i+1, err)
			}
			product, err := store.ProductRef(ctx, in.ProductID)
			if err != nil {
				return err
			}

			la := pricing.ComputeLine(qty, unitPrice, decimal.Zero, product.TaxRate)
			lines = append(lines, pricedLine{item: PurchaseOrderItem{
				ProductID:  product.ID,
				Quantity:   qty,
				UnitPrice:  unitPrice,
				TaxRate:    product.TaxRate,
				TotalPrice: pricing.Round2(la.Total),
			}})
			amounts = append(amounts, la)
		}
		totals := pricing.ComputeDocument(amounts)

		last, err := store.LastOrderNumber(ctx)
		if err != nil {
			return err
		}
		number, err = docnum.Next(docnum.KindPurchaseOrder, last)
		if err != nil {
			return err
		}

		orderID, err = store.InsertOrder(ctx, PurchaseOrder{
			OrderNumber:  number,
			SupplierID:   input.SupplierID,
			OrderDate:    orderDate,
			ExpectedDate: expectedDate,
			Subtotal:     pricing.Round2(totals.Subtotal),
			TaxAmount:    pricing.Round2(totals.Tax),
			TotalAmount:  pricing.Round2(totals.Total),
			Status:       StatusPending,
			Notes:        input.Notes,
			CreatedBy:    actorID,
		})
		if err != nil {
			return err
		}
		for _, line := range lines {
			line.item.PurchaseOrderID = orderID
			if _, err := store.InsertOrderItem(ctx, line.item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	if s.audit != nil {
		s.audit.Record(ctx, actorID, "CREATE", "purchase_orders", orderID, "number="+number)
	}
	s.logger.Info("purchase order created", "order_id", orderID, "number", number)
	return s.repo.Order(ctx, orderID)
}

// ReceiveOrder posts one inbound ledger movement per line and marks the
// order Received, all in one transaction.
func (s *Service) ReceiveOrder(ctx context.Context, actorID, orderID int64) (PurchaseOrder, error) {
	var results []inventory.ApplyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		po, err := store.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if po.Status != StatusPending {
			return &StatusError{OrderID: orderID, Status: po.Status, Op: "receive"}
		}

		items, err := store.OrderItems(ctx, orderID)
		if err != nil {
			return err
		}

		results = results[:0]
		for _, item := range items {
			result, err := s.ledger.Apply(ctx, store.Ledger(), inventory.MovementInput{
				ProductID:     item.ProductID,
				Quantity:      item.Quantity,
				Type:          inventory.MovementIn,
				ReferenceType: inventory.RefPurchaseOrder,
				ReferenceID:   orderID,
				Notes:         "Received " + po.OrderNumber,
				ActorID:       actorID,
			})
			if err != nil {
				return err
			}
			results = append(results, result)
			if err := store.SetItemReceived(ctx, item.ID, item.Quantity); err != nil {
				return err
			}
		}
		return store.MarkReceived(ctx, orderID, time.Now().UTC())
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	if s.notifier != nil {
		s.notifier.NotifyCommitted(ctx, results)
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "RECEIVE", "purchase_orders", orderID, "")
	}
	s.logger.Info("purchase order received", "order_id", orderID, "lines", len(results))
	return s.repo.Order(ctx, orderID)
}

// CancelOrder cancels a pending order. Received orders stay received.
func (s *Service) CancelOrder(ctx context.Context, actorID, orderID int64) (PurchaseOrder, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		po, err := store.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if po.Status != StatusPending {
			return &StatusError{OrderID: orderID, Status: po.Status, Op: "cancel"}
		}
		return store.UpdateOrderStatus(ctx, orderID, StatusCancelled)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "CANCEL", "purchase_orders", orderID, "")
	}
	return s.repo.Order(ctx, orderID)
}

func (s *Service) Orders(ctx context.Context, status OrderStatus, limit, offset int) ([]PurchaseOrder, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.Orders(ctx, status, limit, offset)
}

func (s *Service) Order(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.Order(ctx, id)
}

func (s *Service) Suppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	return s.repo.Suppliers(ctx, activeOnly)
}

func (s *Service) CreateSupplier(ctx context.Context, actorID int64, input SupplierInput) (Supplier, error) {
	sup := Supplier{
		Name:     strings.TrimSpace(input.Name),
		Phone:    input.Phone,
		Email:    input.Email,
		Address:  input.Address,
		GSTIN:    input.GSTIN,
		IsActive: true,
	}
	id, err := s.repo.CreateSupplier(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	sup.ID = id
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "CREATE", "suppliers", id, "name="+sup.Name)
	}
	return sup, nil
}

func (s *Service) DeactivateSupplier(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeactivateSupplier(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.Record(ctx, actorID, "DEACTIVATE", "suppliers", id, "")
	}
	return nil
}

func parsePositive(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ErrBadDecimal
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNonPositive
	}
	return d, nil
}

func parseDateOr(raw string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("procurement: malformed date %q", raw)
	}
	return t, nil
}

func parseDatePtr(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("procurement: malformed date %q", raw)
	}
	return &t, nil
}

package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockpilot/stockpilot/internal/auth"
	"github.com/stockpilot/stockpilot/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.handleApplyMovement)
	r.Get("/movements", h.handleListMovements)
	r.Get("/low-stock", h.handleLowStock)
}

type applyMovementRequest struct {
	ProductID     int64           `json:"product_id" validate:"required,gt=0"`
	Quantity      decimal.Decimal `json:"quantity"`
	Type          string          `json:"movement_type" validate:"required,oneof=IN OUT ADJUSTMENT"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   int64           `json:"reference_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

type movementResponse struct {
	Movement   Movement `json:"movement"`
	NewBalance string   `json:"new_balance"`
}

func (h *Handler) handleApplyMovement(w http.ResponseWriter, r *http.Request) {
	var req applyMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := MovementInput{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Type:          MovementType(req.Type),
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Notes:         req.Notes,
		ActorID:       auth.UserIDFromContext(r.Context()),
	}
	result, err := h.service.ApplyMovement(r.Context(), input)
	if err != nil {
		h.respondMovementError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, movementResponse{
		Movement:   result.Movement,
		NewBalance: result.NewBalance.StringFixed(2),
	})
}

func (h *Handler) respondMovementError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	var missing *StockRecordMissingError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficient.Error())
	case errors.As(err, &missing):
		h.logger.Error("stock record missing", slog.Int64("product_id", missing.ProductID))
		httpx.Problem(w, http.StatusInternalServerError, "Integrity Error", "")
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidMovementType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("apply movement", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var productID int64
	if s := q.Get("product_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id must be an integer")
			return
		}
		productID = id
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	movements, err := h.service.StockMovements(r.Context(), productID, limit)
	if err != nil {
		// Tolerant read: history lists degrade to empty rather than failing
		// the whole screen.
		h.logger.Warn("list movements", slog.Any("error", err))
		httpx.JSON(w, http.StatusOK, []Movement{})
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStockProducts(r.Context())
	if err != nil {
		h.logger.Warn("low stock list", slog.Any("error", err))
		httpx.JSON(w, http.StatusOK, []LowStockProduct{})
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

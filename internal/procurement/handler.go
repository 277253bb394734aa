package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockpilot/stockpilot/internal/auth"
	"github.com/stockpilot/stockpilot/internal/inventory"
	"github.com/stockpilot/stockpilot/internal/platform/httpx"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/suppliers", h.listSuppliers)
	r.Post("/suppliers", h.createSupplier)
	r.Delete("/suppliers/{id}", h.deactivateSupplier)

	r.Get("/purchase-orders", h.listOrders)
	r.Post("/purchase-orders", h.createOrder)
	r.Get("/purchase-orders/{id}", h.getOrder)
	r.Post("/purchase-orders/{id}/receive", h.receiveOrder)
	r.Post("/purchase-orders/{id}/cancel", h.cancelOrder)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var input CreateOrderInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.CreateOrder(r.Context(), auth.UserIDFromContext(r.Context()), input)
	if err != nil {
		h.respondError(w, err, "create purchase order", 0)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	orders, err := h.service.Orders(r.Context(), OrderStatus(q.Get("status")), limit, offset)
	if err != nil {
		h.logger.Error("list purchase orders failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	order, err := h.service.Order(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get purchase order", id)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) receiveOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	order, err := h.service.ReceiveOrder(r.Context(), auth.UserIDFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err, "receive purchase order", id)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	order, err := h.service.CancelOrder(r.Context(), auth.UserIDFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err, "cancel purchase order", id)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.Suppliers(r.Context(), r.URL.Query().Get("include_inactive") != "true")
	if err != nil {
		h.logger.Error("list suppliers failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var input SupplierInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	supplier, err := h.service.CreateSupplier(r.Context(), auth.UserIDFromContext(r.Context()), input)
	if err != nil {
		h.respondError(w, err, "create supplier", 0)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) deactivateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeactivateSupplier(r.Context(), auth.UserIDFromContext(r.Context()), id); err != nil {
		h.respondError(w, err, "deactivate supplier", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string, id int64) {
	var statusErr *StatusError
	var missing *inventory.StockRecordMissingError
	switch {
	case errors.As(err, &statusErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Business Rule Violated", statusErr.Error())
	case errors.Is(err, ErrSupplierNotFound), errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoLineItems), errors.Is(err, ErrBadDecimal), errors.Is(err, ErrNonPositive):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &missing):
		h.logger.Error(op+" hit missing stock record", "id", id, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Integrity Error", "")
	default:
		h.logger.Error(op+" failed", "id", id, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

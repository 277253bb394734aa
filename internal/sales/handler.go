package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

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
	r.Get("/customers", h.listCustomers)
	r.Post("/customers", h.createCustomer)
	r.Get("/customers/{id}", h.getCustomer)
	r.Put("/customers/{id}", h.updateCustomer)
	r.Delete("/customers/{id}", h.deactivateCustomer)

	r.Get("/invoices", h.listInvoices)
	r.Post("/invoices", h.createInvoice)
	r.Get("/invoices/{id}", h.getInvoice)
	r.Post("/invoices/{id}/payments", h.recordPayment)

	r.Get("/quotations", h.listQuotations)
	r.Post("/quotations", h.createQuotation)
	r.Get("/quotations/{id}", h.getQuotation)
	r.Post("/quotations/{id}/status", h.transitionQuotation)
	r.Post("/quotations/{id}/convert", h.convertQuotation)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var input CreateInvoiceInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	invoice, err := h.service.CreateInvoice(r.Context(), auth.UserIDFromContext(r.Context()), input)
	if err != nil {
		h.respondError(w, err, "create invoice", 0)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := InvoiceFilter{Status: InvoiceStatus(q.Get("status"))}
	filter.CustomerID, _ = strconv.ParseInt(q.Get("customer_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		filter.To = t
	}

	invoices, total, err := h.service.Invoices(r.Context(), filter)
	if err != nil {
		h.logger.Error("list invoices failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices, "total": total})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.Invoice(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get invoice", id)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

type paymentResponse struct {
	Payment Payment `json:"payment"`
	Invoice Invoice `json:"invoice"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var input RecordPaymentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	payment, invoice, err := h.service.RecordPayment(r.Context(), auth.UserIDFromContext(r.Context()), id, input)
	if err != nil {
		h.respondError(w, err, "record payment", id)
		return
	}
	httpx.JSON(w, http.StatusCreated, paymentResponse{Payment: payment, Invoice: invoice})
}

func (h *Handler) createQuotation(w http.ResponseWriter, r *http.Request) {
	var input CreateQuotationInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	quotation, err := h.service.CreateQuotation(r.Context(), auth.UserIDFromContext(r.Context()), input)
	if err != nil {
		h.respondError(w, err, "create quotation", 0)
		return
	}
	httpx.JSON(w, http.StatusCreated, quotation)
}

func (h *Handler) listQuotations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	quotations, err := h.service.Quotations(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list quotations failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, quotations)
}

func (h *Handler) getQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	quotation, err := h.service.Quotation(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get quotation", id)
		return
	}
	httpx.JSON(w, http.StatusOK, quotation)
}

type transitionRequest struct {
	Status QuotationStatus `json:"status" validate:"required,oneof=Sent Accepted Rejected Expired"`
}

func (h *Handler) transitionQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	quotation, err := h.service.TransitionQuotation(r.Context(), auth.UserIDFromContext(r.Context()), id, req.Status)
	if err != nil {
		h.respondError(w, err, "transition quotation", id)
		return
	}
	httpx.JSON(w, http.StatusOK, quotation)
}

func (h *Handler) convertQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.ConvertQuotation(r.Context(), auth.UserIDFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err, "convert quotation", id)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.Customers(r.Context(), r.URL.Query().Get("include_inactive") != "true")
	if err != nil {
		h.logger.Error("list customers failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, customers)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	customer, err := h.service.Customer(r.Context(), id)
	if err != nil {
		h.respondError(w, err, "get customer", id)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var input CustomerInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	customer, err := h.service.CreateCustomer(r.Context(), auth.UserIDFromContext(r.Context()), input)
	if err != nil {
		h.respondError(w, err, "create customer", 0)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var input CustomerInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	customer, err := h.service.UpdateCustomer(r.Context(), auth.UserIDFromContext(r.Context()), id, input)
	if err != nil {
		h.respondError(w, err, "update customer", id)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) deactivateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.DeactivateCustomer(r.Context(), auth.UserIDFromContext(r.Context()), id); err != nil {
		h.respondError(w, err, "deactivate customer", id)
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
	var insufficient *inventory.InsufficientStockError
	var overpayment *OverpaymentError
	var transition *StatusTransitionError
	var missing *inventory.StockRecordMissingError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficient.Error())
	case errors.As(err, &overpayment):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Overpayment Rejected", overpayment.Error())
	case errors.As(err, &transition):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Status Transition", transition.Error())
	case errors.Is(err, ErrInvoiceCancelled), errors.Is(err, ErrAlreadySettled):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Business Rule Violated", err.Error())
	case errors.Is(err, ErrCustomerNotFound), errors.Is(err, ErrInvoiceNotFound),
		errors.Is(err, ErrQuotationNotFound), errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoLineItems), errors.Is(err, ErrBadDecimal),
		errors.Is(err, ErrNonPositiveAmount), errors.Is(err, ErrDiscountOutOfRange):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &missing):
		h.logger.Error(op+" hit missing stock record", "id", id, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Integrity Error", "")
	default:
		h.logger.Error(op+" failed", "id", id, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

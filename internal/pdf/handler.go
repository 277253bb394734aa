package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
	"github.com/stockpilot/stockpilot/internal/sales"
)

// InvoiceSource loads the data a rendered invoice needs. *sales.Service
// satisfies it.
type InvoiceSource interface {
	Invoice(ctx context.Context, id int64) (sales.Invoice, error)
	Customer(ctx context.Context, id int64) (sales.Customer, error)
}

type Handler struct {
	logger   *slog.Logger
	source   InvoiceSource
	renderer *Renderer
}

func NewHandler(logger *slog.Logger, source InvoiceSource, renderer *Renderer) *Handler {
	return &Handler{logger: logger, source: source, renderer: renderer}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices/{id}/pdf", h.invoicePDF)
}

func (h *Handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a positive integer")
		return
	}

	inv, err := h.source.Invoice(r.Context(), id)
	if err != nil {
		if errors.Is(err, sales.ErrInvoiceNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "invoice does not exist")
			return
		}
		h.logger.Error("load invoice for pdf failed", "invoice_id", id, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	customer, err := h.source.Customer(r.Context(), inv.CustomerID)
	if err != nil {
		h.logger.Error("load customer for pdf failed", "invoice_id", id, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	doc, err := h.renderer.Render(inv, customer)
	if err != nil {
		h.logger.Error("render invoice pdf failed", "invoice_id", id, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", inv.InvoiceNumber+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

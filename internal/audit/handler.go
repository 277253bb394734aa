package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit-logs", h.timeline)
	r.Get("/audit-logs/export", h.export)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}

	result, err := h.service.Timeline(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit timeline failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}

	data, err := h.service.ExportCSV(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit export failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit_logs.csv"`)
	_, _ = w.Write(data)
}

func (h *Handler) parseFilter(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	q := r.URL.Query()
	filter := Filter{
		Entity: q.Get("entity"),
		Action: q.Get("action"),
	}
	if raw := q.Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id must be a positive integer")
			return Filter{}, false
		}
		filter.UserID = id
	}
	for _, span := range []struct {
		key  string
		dest *time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		if raw := q.Get(span.key); raw != "" {
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", span.key+" must be YYYY-MM-DD")
				return Filter{}, false
			}
			*span.dest = t
		}
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	return filter, true
}

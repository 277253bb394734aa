package backup

import (
	"errors"
	"log/slog"
	"net/http"

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
	r.Get("/backups", h.list)
	r.Post("/backups", h.create)
	r.Delete("/backups/{name}", h.remove)
	r.Get("/backups/{name}/download", h.download)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.List()
	if err != nil {
		h.logger.Error("list backups failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, files)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	file, err := h.service.Create(r.Context())
	if err != nil {
		h.logger.Error("create backup failed", "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "backup could not be created")
		return
	}
	httpx.JSON(w, http.StatusCreated, file)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.service.Delete(name); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "backup file does not exist")
			return
		}
		h.logger.Error("delete backup failed", "name", name, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := h.service.Path(name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "backup file does not exist")
			return
		}
		h.logger.Error("download backup failed", "name", name, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	http.ServeFile(w, r, path)
}

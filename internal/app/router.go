package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/auth"
	"github.com/stockpilot/stockpilot/internal/backup"
	"github.com/stockpilot/stockpilot/internal/catalog"
	"github.com/stockpilot/stockpilot/internal/inventory"
	"github.com/stockpilot/stockpilot/internal/observability"
	"github.com/stockpilot/stockpilot/internal/pdf"
	"github.com/stockpilot/stockpilot/internal/procurement"
	"github.com/stockpilot/stockpilot/internal/report"
	"github.com/stockpilot/stockpilot/internal/sales"
	"github.com/stockpilot/stockpilot/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Config *Config
	Logger *slog.Logger

	TokenIssuer *auth.TokenIssuer

	AuthHandler        *auth.Handler
	CatalogHandler     *catalog.Handler
	InventoryHandler   *inventory.Handler
	SalesHandler       *sales.Handler
	ProcurementHandler *procurement.Handler
	ReportHandler      *report.Handler
	PDFHandler         *pdf.Handler
	AuditHandler       *audit.Handler
	BackupHandler      *backup.Handler
	JobHandler         *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	params.AuthHandler.MountPublicRoutes(r)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(auth.Middleware(params.TokenIssuer))

		params.CatalogHandler.MountRoutes(api)
		params.InventoryHandler.MountRoutes(api)
		params.SalesHandler.MountRoutes(api)
		params.ProcurementHandler.MountRoutes(api)
		params.ReportHandler.MountRoutes(api)
		if params.PDFHandler != nil {
			params.PDFHandler.MountRoutes(api)
		}

		api.Group(func(admin chi.Router) {
			admin.Use(auth.RequireRole(auth.RoleAdmin))
			params.AuthHandler.MountAdminRoutes(admin)
			if params.AuditHandler != nil {
				params.AuditHandler.MountRoutes(admin)
			}
			if params.BackupHandler != nil {
				params.BackupHandler.MountRoutes(admin)
			}
			if params.JobHandler != nil {
				admin.Route("/jobs", func(jr chi.Router) {
					params.JobHandler.MountRoutes(jr)
				})
			}
		})
	})

	return r
}

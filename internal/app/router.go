package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightwave/portal-api/internal/auth"
	"github.com/brightwave/portal-api/internal/contacts"
	"github.com/brightwave/portal-api/internal/files"
	"github.com/brightwave/portal-api/internal/invoices"
	"github.com/brightwave/portal-api/internal/observability"
	"github.com/brightwave/portal-api/internal/projects"
	"github.com/brightwave/portal-api/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	AuthHandler     *auth.Handler
	ProjectsHandler *projects.Handler
	InvoicesHandler *invoices.Handler
	FilesHandler    *files.Handler
	LeadsHandler    *contacts.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/api/projects", params.ProjectsHandler.MountRoutes)
	r.Route("/api/invoices", params.InvoicesHandler.MountRoutes)
	r.Route("/api/files", params.FilesHandler.MountRoutes)
	r.Route("/api/leads", params.LeadsHandler.MountRoutes)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

// Package invoices serves the customer invoice endpoints.
package invoices

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightwave/portal-api/internal/audit"
	"github.com/brightwave/portal-api/internal/cache"
	"github.com/brightwave/portal-api/internal/platform/httpx"
	"github.com/brightwave/portal-api/internal/rbac"
	"github.com/brightwave/portal-api/internal/shared"
	"github.com/brightwave/portal-api/internal/tenant"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	gate    *rbac.Gate
	cache   *cache.Service
	tenants *tenant.Resolver
	audit   *audit.Logger
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, gate *rbac.Gate, cacheSvc *cache.Service, tenants *tenant.Resolver, auditLog *audit.Logger) *Handler {
	return &Handler{logger: logger, gate: gate, cache: cacheSvc, tenants: tenants, audit: auditLog}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	authCtx, err := h.gate.Require(r, rbac.PermInvoicesRead)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	account, _, err := h.tenants.AccountForEmail(r.Context(), authCtx.Principal.Email)
	if err != nil {
		h.fail(w, r, authCtx, "resolve account", err)
		return
	}

	data, cached, err := h.cache.GetInvoices(r.Context(), account.ID)
	if err != nil {
		h.fail(w, r, authCtx, "list invoices", err)
		return
	}

	h.audit.ResourceAccess(r.Context(), audit.Actor(authCtx.Principal.UserID),
		cache.ResourceInvoices, audit.ResourceList, audit.ActionView, audit.OutcomeSuccess,
		map[string]any{"account_id": account.ID, "cached": cached})
	httpx.OKCached(w, data, cached)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, authCtx rbac.AuthContext, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Error(op, slog.Any("error", err), slog.Int64("user_id", authCtx.Principal.UserID))
	h.audit.SecurityEvent(r.Context(), audit.Actor(authCtx.Principal.UserID), "upstream_failure", r.RemoteAddr,
		map[string]any{"op": op, "error": err.Error()})
	httpx.Error(w, http.StatusInternalServerError, httpx.GenericServerError)
}

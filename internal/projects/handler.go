// Package projects serves the customer project endpoints.
package projects

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brightwave/portal-api/internal/audit"
	"github.com/brightwave/portal-api/internal/cache"
	"github.com/brightwave/portal-api/internal/platform/httpx"
	"github.com/brightwave/portal-api/internal/rbac"
	"github.com/brightwave/portal-api/internal/shared"
	"github.com/brightwave/portal-api/internal/tenant"
	"github.com/brightwave/portal-api/internal/upstream"
)

// ProjectCreator is the slice of the upstream client used for writes.
type ProjectCreator interface {
	CreateProject(ctx context.Context, fields upstream.ProjectFields) (*upstream.Project, error)
}

// Handler manages project endpoints.
type Handler struct {
	logger   *slog.Logger
	gate     *rbac.Gate
	cache    *cache.Service
	crm      ProjectCreator
	tenants  *tenant.Resolver
	audit    *audit.Logger
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, gate *rbac.Gate, cacheSvc *cache.Service, crm ProjectCreator, tenants *tenant.Resolver, auditLog *audit.Logger) *Handler {
	return &Handler{
		logger:   logger,
		gate:     gate,
		cache:    cacheSvc,
		crm:      crm,
		tenants:  tenants,
		audit:    auditLog,
		validate: httpx.NewValidator(),
	}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	authCtx, err := h.gate.Require(r, rbac.PermProjectsRead)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	account, _, err := h.tenants.AccountForEmail(r.Context(), authCtx.Principal.Email)
	if err != nil {
		h.fail(w, r, authCtx, "resolve account", err)
		return
	}

	data, cached, err := h.cache.GetProjects(r.Context(), account.ID)
	if err != nil {
		h.fail(w, r, authCtx, "list projects", err)
		return
	}

	h.audit.ResourceAccess(r.Context(), audit.Actor(authCtx.Principal.UserID),
		cache.ResourceProjects, audit.ResourceList, audit.ActionView, audit.OutcomeSuccess,
		map[string]any{"account_id": account.ID, "cached": cached})
	httpx.OKCached(w, data, cached)
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	authCtx, err := h.gate.Require(r, rbac.PermProjectsCreate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var body createProjectRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, shared.NewValidationError(shared.FieldErrors{"body": "malformed JSON"}))
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.RespondError(w, httpx.ValidationFields(err))
		return
	}

	account, _, err := h.tenants.AccountForEmail(r.Context(), authCtx.Principal.Email)
	if err != nil {
		h.fail(w, r, authCtx, "resolve account", err)
		return
	}

	project, err := h.crm.CreateProject(r.Context(), upstream.ProjectFields{
		AccountID:   account.ID,
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		h.fail(w, r, authCtx, "create project", err)
		return
	}

	// The cached project list is now stale; the next read must see the new
	// project.
	h.cache.Invalidate(r.Context(), account.ID, cache.ResourceProjects)

	h.audit.ResourceAccess(r.Context(), audit.Actor(authCtx.Principal.UserID),
		cache.ResourceProjects, project.ID, audit.ActionCreate, audit.OutcomeSuccess,
		map[string]any{"account_id": account.ID, "name": project.Name})
	httpx.OK(w, http.StatusCreated, project)
}

// fail maps collaborator errors: expected not-found conditions become 404,
// anything else is an unexpected server failure that gets a security audit
// entry and a generic 500.
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

// Package contacts serves the public lead-capture endpoint behind the
// marketing site's contact form.
package contacts

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brightwave/portal-api/internal/audit"
	"github.com/brightwave/portal-api/internal/platform/httpx"
	"github.com/brightwave/portal-api/internal/shared"
	"github.com/brightwave/portal-api/internal/upstream"
)

// LeadCreator is the slice of the upstream client used for lead capture.
type LeadCreator interface {
	CreateLead(ctx context.Context, fields upstream.LeadFields) (*upstream.Lead, error)
}

// Handler manages the lead endpoints.
type Handler struct {
	logger   *slog.Logger
	crm      LeadCreator
	audit    *audit.Logger
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, crm LeadCreator, auditLog *audit.Logger) *Handler {
	return &Handler{
		logger:   logger,
		crm:      crm,
		audit:    auditLog,
		validate: httpx.NewValidator(),
	}
}

// MountRoutes registers lead routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
}

type createLeadRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Company string `json:"company" validate:"max=120"`
	Message string `json:"message" validate:"max=4000"`
}

// create ingests a contact form submission. The route is public: the actor
// recorded in the audit trail is "anonymous".
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createLeadRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, shared.NewValidationError(shared.FieldErrors{"body": "malformed JSON"}))
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.RespondError(w, httpx.ValidationFields(err))
		return
	}

	lead, err := h.crm.CreateLead(r.Context(), upstream.LeadFields{
		Email:   body.Email,
		Name:    body.Name,
		Company: body.Company,
		Message: body.Message,
	})
	if err != nil {
		h.logger.Error("create lead", slog.Any("error", err))
		h.audit.SecurityEvent(r.Context(), "", "upstream_failure", r.RemoteAddr,
			map[string]any{"op": "create lead", "error": err.Error()})
		httpx.Error(w, http.StatusInternalServerError, httpx.GenericServerError)
		return
	}

	h.audit.ResourceAccess(r.Context(), "", "leads", lead.ID, audit.ActionCreate, audit.OutcomeSuccess,
		map[string]any{"email": lead.Email})
	httpx.OK(w, http.StatusCreated, map[string]string{"id": lead.ID})
}

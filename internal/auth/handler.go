package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brightwave/portal-api/internal/platform/httpx"
	"github.com/brightwave/portal-api/internal/shared"
)

// Handler serves the session endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sessions: sessions,
		validate: httpx.NewValidator(),
	}
}

// MountRoutes registers auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, shared.NewValidationError(shared.FieldErrors{"body": "malformed JSON"}))
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.RespondError(w, httpx.ValidationFields(err))
		return
	}

	user, err := h.service.Authenticate(r.Context(), body.Email, body.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	principal := shared.Principal{UserID: user.ID, Email: user.Email, Role: user.Role}
	if _, err := h.sessions.Create(r.Context(), w, principal); err != nil {
		h.logger.Error("create session", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, httpx.GenericServerError)
		return
	}
	httpx.OK(w, http.StatusOK, loginResponse{UserID: user.ID, Email: user.Email, Role: user.Role})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if err := h.sessions.Destroy(r.Context(), w, sess); err != nil {
		h.logger.Warn("destroy session", slog.Any("error", err))
	}
	httpx.OK(w, http.StatusOK, nil)
}

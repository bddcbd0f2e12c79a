// Package files serves the customer document endpoints backed by WorkDrive.
package files

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightwave/portal-api/internal/audit"
	"github.com/brightwave/portal-api/internal/cache"
	"github.com/brightwave/portal-api/internal/platform/httpx"
	"github.com/brightwave/portal-api/internal/rbac"
	"github.com/brightwave/portal-api/internal/shared"
	"github.com/brightwave/portal-api/internal/tenant"
	"github.com/brightwave/portal-api/internal/upstream"
)

// Uploads are capped well below the WorkDrive limit.
const maxUploadBytes = 25 << 20

// Drive is the slice of the upstream client used for folder resolution and
// uploads.
type Drive interface {
	GetCustomerFolder(ctx context.Context, email string) (string, error)
	GetProjectFolder(ctx context.Context, email, name string) (string, error)
	UploadFile(ctx context.Context, folderID string, content []byte, name string) (*upstream.FileRef, error)
}

// Handler manages document endpoints.
type Handler struct {
	logger  *slog.Logger
	gate    *rbac.Gate
	cache   *cache.Service
	drive   Drive
	tenants *tenant.Resolver
	audit   *audit.Logger
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, gate *rbac.Gate, cacheSvc *cache.Service, drive Drive, tenants *tenant.Resolver, auditLog *audit.Logger) *Handler {
	return &Handler{logger: logger, gate: gate, cache: cacheSvc, drive: drive, tenants: tenants, audit: auditLog}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.upload)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	authCtx, err := h.gate.Require(r, rbac.PermFilesRead)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	account, folderID, err := h.resolveFolder(r, authCtx)
	if err != nil {
		h.fail(w, r, authCtx, "resolve folder", err)
		return
	}

	data, cached, err := h.cache.GetCustomerFiles(r.Context(), account.ID, folderID)
	if err != nil {
		h.fail(w, r, authCtx, "list files", err)
		return
	}

	h.audit.ResourceAccess(r.Context(), audit.Actor(authCtx.Principal.UserID),
		cache.ResourceFiles, audit.ResourceList, audit.ActionView, audit.OutcomeSuccess,
		map[string]any{"account_id": account.ID, "folder_id": folderID, "cached": cached})
	httpx.OKCached(w, data, cached)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	authCtx, err := h.gate.Require(r, rbac.PermFilesUpload)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.RespondError(w, shared.NewValidationError(shared.FieldErrors{"file": "malformed multipart body"}))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.RespondError(w, shared.NewValidationError(shared.FieldErrors{"file": "file is required"}))
		return
	}
	defer func() { _ = file.Close() }()

	// Read one byte past the cap so an oversized file is rejected rather
	// than silently truncated.
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		httpx.RespondError(w, shared.NewValidationError(shared.FieldErrors{"file": "unreadable file"}))
		return
	}
	if len(content) > maxUploadBytes {
		httpx.RespondError(w, shared.NewValidationError(shared.FieldErrors{"file": "file exceeds the 25 MiB upload limit"}))
		return
	}

	account, folderID, err := h.resolveFolder(r, authCtx)
	if err != nil {
		h.fail(w, r, authCtx, "resolve folder", err)
		return
	}

	ref, err := h.drive.UploadFile(r.Context(), folderID, content, header.Filename)
	if err != nil {
		h.fail(w, r, authCtx, "upload file", err)
		return
	}

	h.cache.Invalidate(r.Context(), account.ID, cache.ResourceFiles)

	h.audit.ResourceAccess(r.Context(), audit.Actor(authCtx.Principal.UserID),
		cache.ResourceFiles, ref.ID, audit.ActionCreate, audit.OutcomeSuccess,
		map[string]any{"account_id": account.ID, "folder_id": folderID, "name": ref.Name})
	httpx.OK(w, http.StatusCreated, ref)
}

// resolveFolder picks the project subfolder when a ?project= filter is set,
// the customer root folder otherwise.
func (h *Handler) resolveFolder(r *http.Request, authCtx rbac.AuthContext) (tenant.Account, string, error) {
	account, _, err := h.tenants.AccountForEmail(r.Context(), authCtx.Principal.Email)
	if err != nil {
		return tenant.Account{}, "", err
	}

	project := r.URL.Query().Get("project")
	if project == "" {
		project = r.FormValue("project")
	}

	var folderID string
	if project != "" {
		folderID, err = h.drive.GetProjectFolder(r.Context(), authCtx.Principal.Email, project)
	} else {
		folderID, err = h.drive.GetCustomerFolder(r.Context(), authCtx.Principal.Email)
	}
	if err != nil {
		return tenant.Account{}, "", err
	}
	return account, folderID, nil
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

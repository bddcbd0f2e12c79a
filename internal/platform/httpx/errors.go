package httpx

import (
	"errors"
	"net/http"

	"github.com/brightwave/portal-api/internal/shared"
)

// GenericServerError is the only message the client ever sees for 5xx
// failures. Internal detail goes to the audit trail, not the wire.
const GenericServerError = "Internal server error"

// RespondError maps the shared error taxonomy to HTTP responses.
func RespondError(w http.ResponseWriter, err error) {
	var verr *shared.ValidationError
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		Error(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, shared.ErrForbidden):
		Error(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, "Not found")
	case errors.As(err, &verr):
		JSON(w, http.StatusBadRequest, ErrorBody{Error: "Validation failed", Fields: verr.Fields})
	default:
		Error(w, http.StatusInternalServerError, GenericServerError)
	}
}

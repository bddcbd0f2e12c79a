package httpx_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brightwave/portal-api/internal/platform/httpx"
	"github.com/brightwave/portal-api/internal/shared"
	_ "github.com/brightwave/portal-api/testing"
)

func TestOKEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.OK(rec, http.StatusCreated, map[string]string{"id": "p1"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["success"])
	require.NotContains(t, body, "cached")
	require.NotEmpty(t, body["timestamp"])
}

func TestOKCachedEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.OKCached(rec, []string{}, true)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["cached"])

	rec = httptest.NewRecorder()
	httpx.OKCached(rec, []string{}, false)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["cached"], "cached=false must still be present in the envelope")
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"unauthenticated", shared.ErrUnauthenticated, http.StatusUnauthorized, "Authentication required"},
		{"wrapped unauthenticated", fmt.Errorf("gate: %w", shared.ErrUnauthenticated), http.StatusUnauthorized, "Authentication required"},
		{"forbidden", shared.ErrForbidden, http.StatusForbidden, "Forbidden"},
		{"invalid credentials", shared.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
		{"not found", fmt.Errorf("tenant: %w", shared.ErrNotFound), http.StatusNotFound, "Not found"},
		{"unknown error", errors.New("pg connection refused"), http.StatusInternalServerError, httpx.GenericServerError},
		{"upstream error", fmt.Errorf("%w: status 502", shared.ErrUpstream), http.StatusInternalServerError, httpx.GenericServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			httpx.RespondError(rec, tc.err)

			require.Equal(t, tc.wantStatus, rec.Code)
			var body httpx.ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.wantError, body.Error)
		})
	}
}

func TestRespondValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.RespondError(rec, shared.NewValidationError(shared.FieldErrors{"email": "failed on required"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Validation failed", body.Error)
	require.Equal(t, "failed on required", body.Fields["email"])
}

func TestValidationFieldsUsesJSONNames(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
		Name  string `json:"name" validate:"required,min=2"`
	}
	v := httpx.NewValidator()
	err := v.Struct(payload{Email: "nope", Name: "x"})
	require.Error(t, err)

	converted := httpx.ValidationFields(err)
	var verr *shared.ValidationError
	require.ErrorAs(t, converted, &verr)
	require.Contains(t, verr.Fields, "email")
	require.Contains(t, verr.Fields, "name")
	require.Equal(t, "failed on email", verr.Fields["email"])
	require.Equal(t, "failed on min", verr.Fields["name"])
}

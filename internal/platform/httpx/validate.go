package httpx

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/brightwave/portal-api/internal/shared"
)

// NewValidator returns a validator that reports JSON field names in errors.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidationFields converts go-playground validator output into the shared
// field error shape handlers return as 400s.
func ValidationFields(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(shared.FieldErrors, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = "failed on " + fe.Tag()
		}
		return shared.NewValidationError(fields)
	}
	return shared.NewValidationError(shared.FieldErrors{"body": err.Error()})
}

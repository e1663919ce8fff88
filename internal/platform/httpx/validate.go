package httpx

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FirstValidationMessage turns a validator error into a single
// human-readable message for the failure envelope.
func FirstValidationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "Validation failed."
	}
	fe := errs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return "The " + field + " field is required."
	case "email":
		return "The " + field + " field must be a valid email address."
	case "min":
		return "The " + field + " field must be at least " + fe.Param() + " characters."
	case "max":
		return "The " + field + " field may not be greater than " + fe.Param() + " characters."
	case "oneof":
		return "The " + field + " field must be one of: " + fe.Param() + "."
	default:
		return "The " + field + " field is invalid."
	}
}

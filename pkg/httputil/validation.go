package httputil

import (
	"github.com/go-playground/validator/v10"
	"github.com/peopleops/hrms-backend/pkg/apperr"
)

var validate = validator.New()

// Validate validates a struct using go-playground/validator
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		fields := make([]apperr.FieldError, 0, len(validationErrors))

		for _, e := range validationErrors {
			fields = append(fields, apperr.FieldError{
				Field:   e.Field(),
				Message: formatValidationError(e),
			})
		}

		return apperr.Validation(fields)
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gte":
		return "must be at least " + e.Param()
	case "lte":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "invalid value"
	}
}

// RegisterCustomValidation registers a custom validation function
func RegisterCustomValidation(tag string, fn validator.Func) error {
	return validate.RegisterValidation(tag, fn)
}

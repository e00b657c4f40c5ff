package handler

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/rutavity/payments/internal/domain"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their form name so the portal can highlight them.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"form", "json"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
	return validate
}

// Validate checks v's `validate` tags. Failures come back as a
// domain.ValidationError keyed by form field name.
func Validate(op string, v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, op, "request validation failed")
	}

	var out error
	for i, fe := range verrs {
		msg := fieldMessage(fe)
		if i == 0 {
			out = domain.NewValidationError(op, fe.Field(), msg)
			continue
		}
		out = domain.AddFieldError(out, fe.Field(), msg)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "min":
		return fe.Field() + " must have at least " + fe.Param()
	case "max":
		return fe.Field() + " is too long"
	}
	return fe.Field() + " is invalid"
}

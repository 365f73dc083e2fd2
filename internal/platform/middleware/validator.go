package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ehr/otsched/internal/platform/apperr"
)

// RequestValidator adapts go-playground/validator to echo.Validator and
// reports the first failing field by its JSON name.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("", "%v", err)
	}
	fe := verrs[0]
	field := fe.Field()
	if fe.Tag() == "required" {
		return apperr.MissingField(field)
	}
	switch fe.Tag() {
	case "oneof":
		return apperr.Validation(field, "%s must be one of [%s]", field, fe.Param())
	case "min", "gte":
		return apperr.Validation(field, "%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return apperr.Validation(field, "%s must be at most %s", field, fe.Param())
	default:
		return apperr.Validation(field, "%s failed %q validation", field, fe.Tag())
	}
}

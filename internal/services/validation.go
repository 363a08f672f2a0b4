package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxItemQuantity bounds the quantity of a single cart line.
const MaxItemQuantity = 2147483647

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// isPhoneNumber reports whether s is a non-empty run of ASCII digits.
func isPhoneNumber(s string) bool {
	return validate.Var(s, "required,number") == nil
}

// fieldErrors turns validator failures into the per-field map carried by apperr validation errors.
func fieldErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"body": err.Error()}
	}
	fields := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			fields[e.Field()] = "is required"
		case "max":
			fields[e.Field()] = fmt.Sprintf("must be at most %s characters", e.Param())
		default:
			fields[e.Field()] = fmt.Sprintf("failed on the '%s' tag", e.Tag())
		}
	}
	return fields
}

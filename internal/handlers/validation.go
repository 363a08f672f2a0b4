package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"fooddelivery/pkg/apperr"
	"fooddelivery/pkg/logger"
)

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
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

// fieldMessages overrides the generic message for a "field.tag" pair.
type fieldMessages map[string]string

func validationMessages(err error, overrides ...fieldMessages) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"body": err.Error()}
	}
	errorMessages := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		for _, o := range overrides {
			if msg, ok := o[e.Field()+"."+e.Tag()]; ok {
				errorMessages[e.Field()] = msg
			}
		}
	}
	return errorMessages
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid request body",
	})
}

func validationFailed(c *fiber.Ctx, err error, overrides ...fieldMessages) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  "Validation failed",
		"errors": validationMessages(err, overrides...),
	})
}

// respondError writes a coded service error. Internal causes are logged, never returned.
func respondError(c *fiber.Ctx, log *logger.Logger, err error) error {
	status := apperr.HTTPStatus(err)
	body := fiber.Map{"error": apperr.MessageOf(err)}
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		body["errors"] = fields
	}
	if status >= fiber.StatusInternalServerError {
		log.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		body = fiber.Map{"error": "Internal server error"}
	} else {
		log.Debug("Request rejected", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(body)
}

func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// Package httpx holds request helpers shared by the fiber handlers.
package httpx

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

var phoneRe = regexp.MustCompile(`^\+?[\d\s\-\(\)]+$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	return v
}

// Validate runs the struct tags of v. The returned error, when present, is
// a *ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "champs invalides"
}

func (e *ValidationError) FieldErrors() map[string]string {
	return e.Fields
}

// Bind parses the JSON body into dst and validates it. Errors are meant to
// be returned as is to the fiber error handler.
func Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "corps de requête invalide")
	}
	return Validate(dst)
}

// ParamID reads a positive numeric path parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "identifiant invalide")
	}
	return uint(id), nil
}

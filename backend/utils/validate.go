package utils

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// ValidateStruct checks `validate` tags and returns field -> failed tag.
func ValidateStruct(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[lowerFirst(fe.Field())] = fe.Tag()
	}
	return out
}

// ParseAndValidate decodes the JSON body into dst and validates it. It writes
// the error response itself and returns ok=false when the request is rejected.
func ParseAndValidate(c *fiber.Ctx, dst interface{}) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, BadRequest(c, "Cannot parse JSON")
	}
	if errs := ValidateStruct(dst); len(errs) > 0 {
		return false, ValidationError(c, errs)
	}
	return true, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// InvalidFields turns a ValidateStruct result into a validation failure listing the fields.
func InvalidFields(errs map[string]string) *AppError {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" ("+errs[k]+")")
	}
	return NewAppError(fiber.StatusUnprocessableEntity, CodeValidation, errors.New("invalid fields: "+strings.Join(parts, ", ")))
}

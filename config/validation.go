package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var collectionRegexp = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("collection_name", func(fl validator.FieldLevel) bool {
		return collectionRegexp.MatchString(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		return name
	})
	return v
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_unless":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "hostname|ip":
		return "must be a hostname or an IP address"
	case "collection_name":
		return "must start with a lowercase letter and contain only [a-z0-9_-], at most 64 characters"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// ValidationError is a single invalid setting.
type ValidationError struct {
	FieldPath string
	Message   string
}

// ValidationErrors collects every invalid setting of a Config.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("invalid configuration, %d error(s):", len(ve)))
	for _, e := range ve {
		sb.WriteString("\n  ")
		sb.WriteString(e.FieldPath)
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

// Validate checks every field and returns ValidationErrors on failure.
func (c *Config) Validate() error {
	var validationErrors ValidationErrors

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			validationErrors = append(validationErrors, ValidationError{
				FieldPath: fe.Field(),
				Message:   getValidationMessage(fe),
			})
		}
	}

	if c.ShutdownTimeout.Duration < 0 {
		validationErrors = append(validationErrors, ValidationError{
			FieldPath: "shutdown_timeout",
			Message:   "must not be negative",
		})
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}
	return nil
}

package record

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("record_id", isRecordID)
	return v
}

// isRecordID accepts printable ids without surrounding whitespace.
func isRecordID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if strings.TrimSpace(id) != id {
		return false
	}
	for _, r := range id {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "record_id":
		return "must be printable and must not start or end with whitespace"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// validateStruct runs the struct tags of v and converts failures into a
// validation *Error listing every offending field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return validationError(err.Error(), nil)
	}
	details := make(map[string]any, len(fieldErrs))
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := strings.ToLower(fe.Field())
		msg := validationMessage(fe)
		details[name] = msg
		msgs = append(msgs, name+": "+msg)
	}
	return validationError(strings.Join(msgs, "; "), details)
}

func validateID(id string) error {
	return validateStruct(idInput{ID: id})
}

// idInput carries an id through the validator. Ids are at most 256 characters.
type idInput struct {
	ID string `validate:"required,max=256,record_id"`
}

// checkValue reports whether v is a JSON scalar.
func checkValue(v any) error {
	switch v.(type) {
	case float64, string, bool:
		return nil
	case nil:
		return validationError("value: field is required", map[string]any{"value": "field is required"})
	default:
		return validationError("value: must be a number, string or boolean",
			map[string]any{"value": "must be a number, string or boolean"})
	}
}

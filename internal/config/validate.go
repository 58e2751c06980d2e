package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks m against its struct constraints and reports every
// violation at once.
func Validate(m *Model) error {
	if m == nil {
		return errors.New("config model cannot be nil")
	}
	if err := validate.Struct(m); err != nil {
		return formatValidationError(err)
	}
	for id, a := range m.Audits {
		if a.ID != id {
			return fmt.Errorf("audit '%s' is stored under key '%s'", a.ID, id)
		}
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := strings.TrimPrefix(e.Namespace(), "Model.")
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: field is required", field))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s: must be at least %s", field, e.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s: must not exceed %s", field, e.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s: must be greater than %s", field, e.Param()))
		case "ltfield":
			msgs = append(msgs, fmt.Sprintf("%s: must be less than %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: validation failed (%s)", field, e.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration:\n- %s", strings.Join(msgs, "\n- "))
}

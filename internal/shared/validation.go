package shared

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("iso4217", func(fl validator.FieldLevel) bool {
			_, err := currency.ParseISO(strings.ToUpper(fl.Field().String()))
			return err == nil
		})
	})
	return validate
}

// ValidateStruct runs `validate` tag rules and reports failures as ErrInvalidInput.
func ValidateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(parts, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

// NormalizeCurrency returns the canonical ISO 4217 code for s.
func NormalizeCurrency(s string) (string, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(s)))
	if err != nil {
		return "", fmt.Errorf("%w: unknown currency %q", ErrInvalidInput, s)
	}
	return unit.String(), nil
}

// Package validation validates commands and queries at the application
// boundary and maps failures onto shared.ErrInvalidInput.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// Validator wraps go-playground validator with the engine's custom rules.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with custom rules registered:
//
//	user_id   non-blank, at most shared.MaxUserIDLength bytes
//	accuracy  0..100
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("user_id", validateUserID)
	_ = v.RegisterValidation("accuracy", validateAccuracy)
	return &Validator{validate: v}
}

var (
	defaultOnce sync.Once
	defaultV    *Validator
)

// Default returns the process-wide validator.
func Default() *Validator {
	defaultOnce.Do(func() { defaultV = New() })
	return defaultV
}

// Struct validates s. op names the operation for the error message.
func (v *Validator) Struct(op string, s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.WrapError("application", op, shared.ErrInvalidInput, "malformed request", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return shared.WrapError("application", op, shared.ErrInvalidInput, strings.Join(problems, "; "), err)
}

// Struct validates s with the default validator.
func Struct(op string, s interface{}) error {
	return Default().Struct(op, s)
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "user_id":
		return fmt.Sprintf("%s must be a non-blank id of at most %d characters", field, shared.MaxUserIDLength)
	case "accuracy":
		return fmt.Sprintf("%s must be between 0 and 100", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func validateUserID(fl validator.FieldLevel) bool {
	return shared.UserID(fl.Field().String()).IsValid()
}

func validateAccuracy(fl validator.FieldLevel) bool {
	return shared.Accuracy(fl.Field().Int()).IsValid()
}

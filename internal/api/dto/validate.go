package dto

import (
	"github.com/go-playground/validator/v10"

	"github.com/taller-labs/fieldservice/pkg/apperrors"
)

var validate = validator.New()

// Validate runs struct-tag validation and maps failures onto the domain
// error taxonomy.
func Validate(payload any) error {
	if err := validate.Struct(payload); err != nil {
		details := map[string]any{}
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		return apperrors.NewValidationError("invalid payload", details)
	}
	return nil
}

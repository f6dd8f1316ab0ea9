package validations

import (
	pkgError "github.com/AzielCF/wa-relay/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidateSessionID accepts an empty id, which means "generate one".
func ValidateSessionID(id string) error {
	if err := validation.Validate(id, validation.Match(sessionIDPattern).Error("must contain only letters, digits, '-' or '_'")); err != nil {
		return pkgError.ValidationError("id: " + err.Error())
	}
	return nil
}

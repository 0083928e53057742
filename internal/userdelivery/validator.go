package userdelivery

import (
	"github.com/go-playground/validator/v10"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// ValidCredential validates whether the value can be stored as a username or secret.
var ValidCredential validator.Func = func(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return domain.ValidField(s)
	}

	return false
}

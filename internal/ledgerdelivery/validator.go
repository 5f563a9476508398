package ledgerdelivery

import (
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/go-playground/validator/v10"
)

// ValidAmount validates that the string is a positive amount with at most 2 decimal places.
var ValidAmount validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	d, err := moneypkg.Parse(s)
	if err != nil {
		return false
	}

	return moneypkg.IsPositiveAmount(d)
}

// ValidStatus validates that the string is a known account status.
var ValidStatus validator.Func = func(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		return domain.AccountStatus(s).Valid()
	}

	return false
}

// RegisterValidators registers the custom binding tags on the gin validator engine.
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("amount", ValidAmount); err != nil {
		return err
	}

	return v.RegisterValidation("status", ValidStatus)
}
